// Package engine wires the price feed, crossover detection, and order
// execution into per-symbol workers.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/execution"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/metrics"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/strategy"
)

// Source produces price samples, the shape implemented by exchange.Feed.
type Source interface {
	Run(ctx context.Context, out chan<- signal.PriceSample) error
}

// Engine runs one worker goroutine per configured symbol. Each worker owns
// that symbol's moving-average state and processes samples strictly in
// arrival order; symbols never block or fail each other.
type Engine struct {
	source      Source
	coordinator *execution.Coordinator
	symbols     []string
	shortWindow int
	longWindow  int
	buffer      int
	log         zerolog.Logger
}

// Config carries the immutable engine construction snapshot. Changing any of
// it means building a new engine; there is no live reconfiguration.
type Config struct {
	Symbols     []string
	ShortWindow int
	LongWindow  int
	// Buffer is the per-symbol channel depth; a slow venue briefly
	// backpressures only its own symbol. Defaults to 64.
	Buffer int
}

// New validates the snapshot and builds an engine.
func New(cfg Config, source Source, coordinator *execution.Coordinator, log zerolog.Logger) (*Engine, error) {
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("engine requires at least one symbol")
	}
	// Window validation happens here so a bad configuration refuses to start
	// monitoring instead of failing on the first sample.
	if _, err := strategy.NewMAPair(cfg.ShortWindow, cfg.LongWindow); err != nil {
		return nil, err
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Engine{
		source:      source,
		coordinator: coordinator,
		symbols:     cfg.Symbols,
		shortWindow: cfg.ShortWindow,
		longWindow:  cfg.LongWindow,
		buffer:      buffer,
		log:         log,
	}, nil
}

// Run blocks until ctx is canceled and every worker has drained. The source
// runs in its own goroutine; its terminal error (other than cancellation) is
// returned after shutdown.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	samples := make(chan signal.PriceSample, e.buffer)
	sourceErr := make(chan error, 1)
	go func() {
		err := e.source.Run(ctx, samples)
		if err != nil && !errors.Is(err, context.Canceled) {
			e.log.Error().Err(err).Msg("price source stopped")
			sourceErr <- err
		}
		close(sourceErr)
		cancel()
	}()

	perSymbol := make(map[string]chan signal.PriceSample, len(e.symbols))
	var wg sync.WaitGroup
	for _, sym := range e.symbols {
		ch := make(chan signal.PriceSample, e.buffer)
		perSymbol[sym] = ch
		wg.Add(1)
		go func(sym string, in <-chan signal.PriceSample) {
			defer wg.Done()
			e.runSymbol(ctx, sym, in)
		}(sym, ch)
	}

	// Fan out in arrival order; per-symbol channels preserve sequence.
	for {
		select {
		case <-ctx.Done():
			for _, ch := range perSymbol {
				close(ch)
			}
			wg.Wait()
			if err, ok := <-sourceErr; ok {
				return err
			}
			return ctx.Err()
		case sample := <-samples:
			ch, ok := perSymbol[sample.Symbol]
			if !ok {
				e.log.Warn().Str("sym", sample.Symbol).Msg("sample for unconfigured symbol dropped")
				continue
			}
			select {
			case ch <- sample:
			case <-ctx.Done():
			}
		}
	}
}

// runSymbol is the per-symbol loop: tracker and detector state live on the
// goroutine's stack, so no locking is needed and ordering is guaranteed.
func (e *Engine) runSymbol(ctx context.Context, sym string, in <-chan signal.PriceSample) {
	detector, err := strategy.NewMACross(e.shortWindow, e.longWindow)
	if err != nil {
		e.log.Error().Err(err).Str("sym", sym).Msg("symbol worker refused to start")
		return
	}

	log := e.log.With().Str("sym", sym).Logger()
	for sample := range in {
		if ctx.Err() != nil {
			return
		}
		ev, err := detector.OnSample(sample)
		if err != nil {
			if errors.Is(err, strategy.ErrStaleSample) {
				metrics.StaleSamplesTotal.WithLabelValues(sym).Inc()
				log.Warn().Time("ts", sample.Ts).Float64("px", sample.Price).Msg("discarded out-of-order sample")
				continue
			}
			log.Warn().Err(err).Msg("sample rejected")
			continue
		}
		if ev == nil {
			continue
		}
		metrics.SignalsTotal.WithLabelValues(sym, string(ev.Direction)).Inc()
		outcome := e.coordinator.Handle(ctx, *ev)
		log.Info().
			Str("direction", string(ev.Direction)).
			Str("outcome", string(outcome)).
			Float64("short", ev.Short).
			Float64("long", ev.Long).
			Msg("crossover handled")
	}
}
