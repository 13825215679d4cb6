package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
)

func feedPrices(t *testing.T, det *MACross, symbol string, prices []float64) []signal.CrossoverEvent {
	t.Helper()
	base := time.Now()
	var events []signal.CrossoverEvent
	for i, px := range prices {
		ev, err := det.OnSample(signal.PriceSample{
			Symbol: symbol,
			Price:  px,
			Ts:     base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("OnSample(%d) returned error: %v", i, err)
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

func TestMACrossGoldenAfterDip(t *testing.T) {
	det, err := NewMACross(3, 5)
	if err != nil {
		t.Fatalf("NewMACross returned error: %v", err)
	}

	// Flat warmup, a dip, then a recovery: the short average overtakes the
	// long one exactly once. No event may fire before the long window fills.
	events := feedPrices(t, det, "BTCUSDT", []float64{10, 10, 10, 10, 10, 9, 8, 12, 13, 14})
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d: %+v", len(events), events)
	}
	ev := events[0]
	if ev.Direction != signal.Golden {
		t.Fatalf("expected golden cross, got %s", ev.Direction)
	}
	if ev.Short <= ev.Long {
		t.Fatalf("golden event with short %.4f <= long %.4f", ev.Short, ev.Long)
	}
	if ev.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected symbol %s", ev.Symbol)
	}
}

func TestMACrossFirstWarmUpdateOnlySeeds(t *testing.T) {
	det, err := NewMACross(2, 3)
	if err != nil {
		t.Fatalf("NewMACross returned error: %v", err)
	}

	// Rising prices put short above long from the very first warm update.
	// There is no previous sign to compare against, so nothing may fire.
	events := feedPrices(t, det, "ETHUSDT", []float64{10, 11, 12, 13, 14})
	if len(events) != 0 {
		t.Fatalf("expected no events on one-sided data, got %+v", events)
	}
}

func TestMACrossDeathThenGolden(t *testing.T) {
	det, err := NewMACross(2, 4)
	if err != nil {
		t.Fatalf("NewMACross returned error: %v", err)
	}

	prices := []float64{10, 12, 14, 16, 8, 6, 20, 30}
	events := feedPrices(t, det, "SOLUSDT", prices)
	if len(events) != 2 {
		t.Fatalf("expected death then golden, got %+v", events)
	}
	if events[0].Direction != signal.Death || events[1].Direction != signal.Golden {
		t.Fatalf("unexpected event order: %+v", events)
	}
}

func TestMACrossEqualityRetainsSign(t *testing.T) {
	det, err := NewMACross(1, 2)
	if err != nil {
		t.Fatalf("NewMACross returned error: %v", err)
	}

	// Seed positive sign, go exactly flat (short == long), then rise again.
	// Equality must not count as a flip in either direction.
	prices := []float64{10, 12, 12, 12, 13}
	events := feedPrices(t, det, "BNBUSDT", prices)
	if len(events) != 0 {
		t.Fatalf("expected flat data to emit nothing, got %+v", events)
	}
}

func TestMACrossIndependentSymbols(t *testing.T) {
	det, err := NewMACross(2, 3)
	if err != nil {
		t.Fatalf("NewMACross returned error: %v", err)
	}

	up := feedPrices(t, det, "UP", []float64{10, 10, 10, 5, 4, 20, 25})
	if len(up) != 1 || up[0].Direction != signal.Golden {
		t.Fatalf("unexpected UP events: %+v", up)
	}
	// The other symbol starts cold regardless of UP's history.
	down := feedPrices(t, det, "DOWN", []float64{10, 11, 12})
	if len(down) != 0 {
		t.Fatalf("expected DOWN to only warm up, got %+v", down)
	}
}

func TestMACrossStaleSampleSurfacesDataQualityError(t *testing.T) {
	det, err := NewMACross(2, 3)
	if err != nil {
		t.Fatalf("NewMACross returned error: %v", err)
	}

	now := time.Now()
	if _, err := det.OnSample(signal.PriceSample{Symbol: "XRPUSDT", Price: 1, Ts: now}); err != nil {
		t.Fatalf("OnSample returned error: %v", err)
	}
	_, err = det.OnSample(signal.PriceSample{Symbol: "XRPUSDT", Price: 2, Ts: now.Add(-time.Second)})
	if !errors.Is(err, ErrStaleSample) {
		t.Fatalf("expected ErrStaleSample, got %v", err)
	}

	if _, err := det.OnSample(signal.PriceSample{Symbol: "", Price: 1, Ts: now}); err == nil {
		t.Fatalf("expected error for malformed sample")
	}
}

func TestMACrossRemoveResetsSymbol(t *testing.T) {
	det, err := NewMACross(2, 3)
	if err != nil {
		t.Fatalf("NewMACross returned error: %v", err)
	}

	feedPrices(t, det, "ADAUSDT", []float64{10, 10, 10, 4, 3, 30})
	det.Remove("ADAUSDT")

	// After removal the symbol is cold again: one-sided data seeds only.
	events := feedPrices(t, det, "ADAUSDT", []float64{1, 2, 3, 4})
	if len(events) != 0 {
		t.Fatalf("expected cold restart after Remove, got %+v", events)
	}
}
