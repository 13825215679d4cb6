// Package notify delivers human-readable engine events to the operator.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/venue"
)

// Notifier is the sink for signal detections and execution outcomes.
type Notifier interface {
	SignalDetected(ctx context.Context, ev signal.CrossoverEvent)
	OrderExecuted(ctx context.Context, ev signal.CrossoverEvent, conf venue.Confirmation, qty float64)
	OrderFailed(ctx context.Context, ev signal.CrossoverEvent, reason string)
	Suppressed(ctx context.Context, ev signal.CrossoverEvent, reason string)
}

// Logger is a zerolog-backed sink. It doubles as the diagnostics channel for
// suppressed duplicates, which stay internal and never page the operator.
type Logger struct {
	log zerolog.Logger
}

// NewLogger wraps a zerolog logger as a Notifier.
func NewLogger(log zerolog.Logger) *Logger { return &Logger{log: log} }

func (l *Logger) SignalDetected(_ context.Context, ev signal.CrossoverEvent) {
	l.log.Info().
		Str("sym", ev.Symbol).
		Str("direction", string(ev.Direction)).
		Float64("short", ev.Short).
		Float64("long", ev.Long).
		Float64("px", ev.Price).
		Msg("crossover detected")
}

func (l *Logger) OrderExecuted(_ context.Context, ev signal.CrossoverEvent, conf venue.Confirmation, qty float64) {
	l.log.Info().
		Str("sym", ev.Symbol).
		Str("direction", string(ev.Direction)).
		Str("order_id", conf.OrderID).
		Float64("qty", qty).
		Float64("px", conf.Price).
		Msg("order executed")
}

func (l *Logger) OrderFailed(_ context.Context, ev signal.CrossoverEvent, reason string) {
	l.log.Error().
		Str("sym", ev.Symbol).
		Str("direction", string(ev.Direction)).
		Str("reason", reason).
		Msg("order failed")
}

func (l *Logger) Suppressed(_ context.Context, ev signal.CrossoverEvent, reason string) {
	l.log.Debug().
		Str("sym", ev.Symbol).
		Str("direction", string(ev.Direction)).
		Str("reason", reason).
		Msg("signal suppressed")
}

// Multi fans every event out to all wrapped notifiers.
type Multi []Notifier

func (m Multi) SignalDetected(ctx context.Context, ev signal.CrossoverEvent) {
	for _, n := range m {
		n.SignalDetected(ctx, ev)
	}
}

func (m Multi) OrderExecuted(ctx context.Context, ev signal.CrossoverEvent, conf venue.Confirmation, qty float64) {
	for _, n := range m {
		n.OrderExecuted(ctx, ev, conf, qty)
	}
}

func (m Multi) OrderFailed(ctx context.Context, ev signal.CrossoverEvent, reason string) {
	for _, n := range m {
		n.OrderFailed(ctx, ev, reason)
	}
}

func (m Multi) Suppressed(ctx context.Context, ev signal.CrossoverEvent, reason string) {
	for _, n := range m {
		n.Suppressed(ctx, ev, reason)
	}
}

func formatSignal(ev signal.CrossoverEvent) string {
	arrow := "📈 buy signal"
	if ev.Direction == signal.Death {
		arrow = "📉 sell signal"
	}
	return fmt.Sprintf("%s %s\nprice: %.4f\nshort MA: %.4f\nlong MA: %.4f", arrow, ev.Symbol, ev.Price, ev.Short, ev.Long)
}
