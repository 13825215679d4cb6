// Package execution converts crossover events into at most one venue order
// each, gated by the ledger and throttled by a shared rate limiter.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/ledger"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/metrics"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/notify"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/venue"
)

// Outcome reports how the coordinator resolved one crossover event.
type Outcome string

const (
	// Executed means the venue confirmed an order and the ledger was updated.
	Executed Outcome = "executed"
	// Suppressed means the ledger rejected the event; not an error.
	Suppressed Outcome = "suppressed"
	// Failed means submission was rejected or retries were exhausted.
	// The ledger is untouched so the same direction stays eligible.
	Failed Outcome = "failed"
)

const (
	defaultMaxAttempts    = 3
	initialBackoff        = time.Second
	maxBackoff            = 30 * time.Second
	backoffFactor         = 1.8
	defaultOrdersPerSec   = 2
	defaultOrderBurstSize = 1
)

// Coordinator owns the signal-to-order pipeline for every symbol. The venue
// connection and rate limiter are shared; the ledger serializes its own state.
type Coordinator struct {
	venue       venue.Venue
	ledger      *ledger.Ledger
	notifier    notify.Notifier
	limiter     *rate.Limiter
	log         zerolog.Logger
	qty         float64
	maxAttempts int
	backoff     time.Duration
}

// Option configures Coordinator construction parameters.
type Option func(*Coordinator)

// WithMaxAttempts bounds submission attempts for transient failures.
func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff overrides the initial retry delay for transient failures.
func WithBackoff(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithRateLimit overrides the global outbound order throttle.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Coordinator) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// NewCoordinator wires the venue, ledger, and notifier behind a coordinator
// placing fixed-quantity orders.
func NewCoordinator(v venue.Venue, l *ledger.Ledger, n notify.Notifier, qty float64, log zerolog.Logger, opts ...Option) (*Coordinator, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %v", qty)
	}
	c := &Coordinator{
		venue:       v,
		ledger:      l,
		notifier:    n,
		limiter:     rate.NewLimiter(rate.Limit(defaultOrdersPerSec), defaultOrderBurstSize),
		log:         log,
		qty:         qty,
		maxAttempts: defaultMaxAttempts,
		backoff:     initialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Handle resolves one crossover event: consult the ledger, submit with
// bounded retry, record only on confirmed success.
func (c *Coordinator) Handle(ctx context.Context, ev signal.CrossoverEvent) Outcome {
	c.notifier.SignalDetected(ctx, ev)

	ok, reason := c.ledger.MayExecute(ev.Symbol, ev.Direction, ev.Ts)
	if !ok {
		metrics.SuppressedTotal.WithLabelValues(ev.Symbol, string(ev.Direction)).Inc()
		c.log.Info().
			Str("sym", ev.Symbol).
			Str("direction", string(ev.Direction)).
			Str("reason", reason).
			Msg("execution suppressed")
		c.notifier.Suppressed(ctx, ev, reason)
		return Suppressed
	}

	order := venue.Order{
		Symbol:        ev.Symbol,
		Side:          venue.SideFor(ev.Direction),
		Qty:           c.qty,
		ClientOrderID: uuid.NewString(),
	}

	conf, err := c.submit(ctx, order)
	if err != nil {
		kind := string(venue.Permanent)
		if venue.IsTransient(err) {
			kind = string(venue.Transient)
		}
		metrics.OrderFailuresTotal.WithLabelValues(ev.Symbol, kind).Inc()
		c.log.Error().Err(err).
			Str("sym", ev.Symbol).
			Str("side", string(order.Side)).
			Msg("order submission failed")
		c.notifier.OrderFailed(ctx, ev, err.Error())
		return Failed
	}

	if err := c.ledger.Record(ev.Symbol, ev.Direction, ev.Ts, conf.OrderID); err != nil {
		// The order is live even if the snapshot write failed; surface loudly.
		c.log.Error().Err(err).Str("sym", ev.Symbol).Msg("ledger persist failed after fill")
	}
	metrics.OrdersTotal.WithLabelValues(ev.Symbol, string(order.Side)).Inc()
	c.log.Info().
		Str("sym", ev.Symbol).
		Str("side", string(order.Side)).
		Float64("qty", order.Qty).
		Str("order_id", conf.OrderID).
		Msg("order executed")
	c.notifier.OrderExecuted(ctx, ev, conf, order.Qty)
	return Executed
}

// submit places the order with bounded multiplicative backoff on transient
// failures. Permanent failures and context cancellation stop immediately.
func (c *Coordinator) submit(ctx context.Context, order venue.Order) (venue.Confirmation, error) {
	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return venue.Confirmation{}, fmt.Errorf("rate limiter: %w", err)
		}

		conf, err := c.venue.SubmitOrder(ctx, order)
		if err == nil {
			return conf, nil
		}
		lastErr = err
		if !venue.IsTransient(err) || ctx.Err() != nil {
			return venue.Confirmation{}, err
		}
		if attempt == c.maxAttempts {
			break
		}

		metrics.OrderRetriesTotal.WithLabelValues(order.Symbol).Inc()
		c.log.Warn().Err(err).
			Str("sym", order.Symbol).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("transient venue failure, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return venue.Confirmation{}, ctx.Err()
		}
		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return venue.Confirmation{}, fmt.Errorf("attempts exhausted: %w", lastErr)
}
