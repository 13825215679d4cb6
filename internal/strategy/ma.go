// Package strategy contains the moving-average tracking and crossover detection logic.
package strategy

import (
	"errors"
	"fmt"
	"time"
)

// ErrStaleSample flags a price sample whose timestamp does not advance the
// per-symbol series. The sample is discarded without touching the averages.
var ErrStaleSample = errors.New("stale or out-of-order price sample")

// MAState is the tracker output for one symbol after consuming a sample.
// Short and Long are simple moving averages over the configured windows;
// Warm reports whether the long window has seen enough samples to be meaningful.
type MAState struct {
	Short   float64
	Long    float64
	Samples int
	Warm    bool
}

// Diff returns short minus long, the quantity whose sign flips on a crossover.
func (s MAState) Diff() float64 { return s.Short - s.Long }

// rollingWindow keeps a fixed-size ring of prices with a running sum so each
// update is O(1). Simple averages are used rather than exponential decay:
// the venue-facing behaviour is defined in terms of the arithmetic mean of
// the last N closes, and test vectors depend on that formula.
type rollingWindow struct {
	prices []float64
	next   int
	count  int
	sum    float64
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{prices: make([]float64, size)}
}

func (w *rollingWindow) push(price float64) {
	if w.count == len(w.prices) {
		w.sum -= w.prices[w.next]
	} else {
		w.count++
	}
	w.prices[w.next] = price
	w.sum += price
	w.next = (w.next + 1) % len(w.prices)
}

func (w *rollingWindow) full() bool { return w.count == len(w.prices) }

func (w *rollingWindow) average() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// MAPair maintains the short and long moving averages for one symbol.
// Not safe for concurrent use; each symbol worker owns exactly one MAPair.
type MAPair struct {
	short   *rollingWindow
	long    *rollingWindow
	samples int
	lastTs  time.Time
}

// NewMAPair builds a tracker for the given window lengths. Short must be
// strictly smaller than long and both positive.
func NewMAPair(short, long int) (*MAPair, error) {
	if short <= 0 || long <= 0 {
		return nil, fmt.Errorf("window lengths must be positive, got short=%d long=%d", short, long)
	}
	if short >= long {
		return nil, fmt.Errorf("short window %d must be smaller than long window %d", short, long)
	}
	return &MAPair{
		short: newRollingWindow(short),
		long:  newRollingWindow(long),
	}, nil
}

// Update consumes one price sample and returns the refreshed state.
// Samples whose timestamp does not strictly advance the series are rejected
// with ErrStaleSample and leave both averages untouched.
func (p *MAPair) Update(price float64, ts time.Time) (MAState, error) {
	if !p.lastTs.IsZero() && !ts.After(p.lastTs) {
		return p.state(), ErrStaleSample
	}
	p.lastTs = ts
	p.samples++
	p.short.push(price)
	p.long.push(price)
	return p.state(), nil
}

func (p *MAPair) state() MAState {
	return MAState{
		Short:   p.short.average(),
		Long:    p.long.average(),
		Samples: p.samples,
		Warm:    p.long.full(),
	}
}
