// Package exchange hosts the price source adapters feeding the engine.
package exchange

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/metrics"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic samples (tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance streams live trades from Binance public websockets.
	ProviderBinance = "binance"
	// ProviderBinanceKlines polls the Binance REST kline endpoint and emits
	// one sample per newly closed candle.
	ProviderBinanceKlines = "binance-klines"
)

const (
	defaultPollInterval   = 60 * time.Second
	defaultKlineInterval  = "15m"
	defaultBinanceWSURL   = "wss://stream.binance.com:9443"
	defaultBinanceRESTURL = "https://fapi.binance.com"
)

// Feed is a pluggable market data source. Run pushes samples onto a channel
// until the context is canceled; adapter-side disconnects are handled by
// reconnecting internally, never by failing the engine.
type Feed struct {
	provider      string
	symbols       []string
	log           zerolog.Logger
	pollInterval  time.Duration
	klineInterval string
	wsBaseURL     string
	restBaseURL   string
	mu            sync.RWMutex
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithPollInterval overrides the default polling cadence for HTTP-based feeds.
func WithPollInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.pollInterval = d
		}
	}
}

// WithKlineInterval sets the candle interval requested from the venue.
func WithKlineInterval(interval string) Option {
	return func(f *Feed) {
		if interval != "" {
			f.klineInterval = interval
		}
	}
}

// WithBaseURLs overrides venue endpoints, used by tests and testnet setups.
func WithBaseURLs(ws, rest string) Option {
	return func(f *Feed) {
		if ws != "" {
			f.wsBaseURL = strings.TrimSuffix(ws, "/")
		}
		if rest != "" {
			f.restBaseURL = strings.TrimSuffix(rest, "/")
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, symbols []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:      strings.ToLower(provider),
		log:           log,
		pollInterval:  defaultPollInterval,
		klineInterval: defaultKlineInterval,
		wsBaseURL:     defaultBinanceWSURL,
		restBaseURL:   defaultBinanceRESTURL,
	}
	f.setSymbols(symbols)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Symbols returns the tracked symbol list.
func (f *Feed) Symbols() []string {
	return f.snapshotSymbols()
}

func (f *Feed) setSymbols(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	f.symbols = f.symbols[:0]
	for sym := range unique {
		f.symbols = append(f.symbols, sym)
	}
	sort.Strings(f.symbols)
}

func (f *Feed) snapshotSymbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Run pushes samples onto the provided channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- signal.PriceSample) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx, out)
	case ProviderBinanceKlines:
		return f.runBinanceKlines(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

// runStub walks each symbol's price through a deterministic dip-and-recover
// pattern so offline runs exercise a full crossover cycle.
func (f *Feed) runStub(ctx context.Context, out chan<- signal.PriceSample) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	pattern := []float64{100, 100, 100, 100, 100, 95, 90, 104, 108, 112}
	step := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			px := pattern[step%len(pattern)] + float64(step/len(pattern))
			step++
			for _, sym := range f.snapshotSymbols() {
				sample := signal.PriceSample{Symbol: sym, Price: px, Ts: ts}
				select {
				case out <- sample:
					metrics.SamplesTotal.WithLabelValues(sym).Inc()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
