package strategy

import (
	"fmt"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
)

type symbolSeries struct {
	pair *MAPair
	sign int // sign of (short - long) at the last warm update; 0 until seeded
}

// MACross feeds price samples through per-symbol moving-average pairs and
// emits a CrossoverEvent whenever the sign of (short - long) flips between
// consecutive warm updates.
//
// The first warm update for a symbol only seeds the stored sign and never
// emits. Exact equality of the two averages keeps the previous sign, so flat
// data cannot oscillate.
type MACross struct {
	shortWindow int
	longWindow  int
	series      map[string]*symbolSeries
}

// NewMACross validates the window lengths and builds a detector.
func NewMACross(short, long int) (*MACross, error) {
	// Construct a throwaway pair up front so bad windows fail at startup,
	// not on the first sample of some symbol.
	if _, err := NewMAPair(short, long); err != nil {
		return nil, err
	}
	return &MACross{
		shortWindow: short,
		longWindow:  long,
		series:      make(map[string]*symbolSeries),
	}, nil
}

// Windows reports the configured short and long window lengths.
func (m *MACross) Windows() (int, int) { return m.shortWindow, m.longWindow }

// OnSample consumes one sample in arrival order and returns a crossover event
// when one is detected, nil otherwise. ErrStaleSample is returned for
// out-of-order input; the caller logs it as a data-quality warning.
func (m *MACross) OnSample(s signal.PriceSample) (*signal.CrossoverEvent, error) {
	if s.Symbol == "" || s.Price <= 0 {
		return nil, fmt.Errorf("malformed sample %+v: %w", s, ErrStaleSample)
	}

	series := m.series[s.Symbol]
	if series == nil {
		pair, err := NewMAPair(m.shortWindow, m.longWindow)
		if err != nil {
			return nil, err
		}
		series = &symbolSeries{pair: pair}
		m.series[s.Symbol] = series
	}

	state, err := series.pair.Update(s.Price, s.Ts)
	if err != nil {
		return nil, err
	}
	if !state.Warm {
		return nil, nil
	}

	sign := signOf(state.Diff())
	prev := series.sign
	if sign == 0 {
		// Equal averages retain the previous sign.
		return nil, nil
	}
	series.sign = sign
	if prev == 0 || prev == sign {
		return nil, nil
	}

	dir := signal.Golden
	if sign < 0 {
		dir = signal.Death
	}
	return &signal.CrossoverEvent{
		Symbol:    s.Symbol,
		Direction: dir,
		Short:     state.Short,
		Long:      state.Long,
		Price:     s.Price,
		Ts:        s.Ts,
	}, nil
}

// Remove forgets all state for a symbol, used when it is deconfigured.
func (m *MACross) Remove(symbol string) {
	delete(m.series, symbol)
}

func signOf(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
