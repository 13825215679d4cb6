package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
)

func TestFeedRunEmitsSamples(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(ProviderStub, []string{"btcusdt", " BTCUSDT "}, zerolog.Nop())
	if syms := feed.Symbols(); len(syms) != 1 || syms[0] != "BTCUSDT" {
		t.Fatalf("expected deduplicated uppercase symbols, got %+v", syms)
	}

	samples := make(chan signal.PriceSample, 1)
	go func() {
		_ = feed.Run(ctx, samples)
	}()

	select {
	case s := <-samples:
		if s.Symbol != "BTCUSDT" {
			t.Fatalf("unexpected symbol %s", s.Symbol)
		}
		if s.Price <= 0 {
			t.Fatalf("expected positive price")
		}
		cancel()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sample")
	}
}

func TestParseBinanceSymbol(t *testing.T) {
	cases := map[string]string{
		"btcusdt@trade":    "BTCUSDT",
		"ethusdt@aggTrade": "ETHUSDT",
		"dogeusdt":         "DOGEUSDT",
		"":                 "",
	}
	for stream, expected := range cases {
		if got := parseBinanceSymbol(stream); got != expected {
			t.Fatalf("expected %s got %s", expected, got)
		}
	}
}

func TestRunBinanceKlinesEmitsOncePerCandle(t *testing.T) {
	// Two polls against the same candle pair must yield one sample; a new
	// candle on the third poll yields the second sample.
	var polls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		openTime := int64(1700000000000)
		if n >= 3 {
			openTime += 900000
		}
		fmt.Fprintf(w, `[[%d,"100.0","101.0","99.0","100.5","12.3",%d,"0","0","0","0","0"],[%d,"100.5","102.0","100.0","101.2","8.1",%d,"0","0","0","0","0"]]`,
			openTime, openTime+899999, openTime+900000, openTime+1799999)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(
		ProviderBinanceKlines,
		[]string{"BTCUSDT"},
		zerolog.Nop(),
		WithBaseURLs("", server.URL),
		WithPollInterval(20*time.Millisecond),
		WithKlineInterval("15m"),
	)

	samples := make(chan signal.PriceSample, 4)
	errCh := make(chan error, 1)
	go func() {
		if err := feed.Run(ctx, samples); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	first := <-samples
	if first.Symbol != "BTCUSDT" || first.Price != 100.5 {
		t.Fatalf("unexpected first sample: %+v", first)
	}

	second := <-samples
	if second.Price != 100.5 {
		t.Fatalf("unexpected second sample: %+v", second)
	}
	if !second.Ts.After(first.Ts) {
		t.Fatalf("second sample must advance the timestamp")
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("feed returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("feed did not stop after cancel")
	}
}

func TestRunBinanceKlinesRequiresSymbols(t *testing.T) {
	feed := NewFeed(ProviderBinanceKlines, nil, zerolog.Nop())
	if err := feed.Run(context.Background(), make(chan signal.PriceSample)); err == nil {
		t.Fatalf("expected error for empty symbol list")
	}
}
