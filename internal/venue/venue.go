// Package venue handles order submission to trading venues and classifies
// their failures so retry policy can dispatch on a tag instead of error text.
package venue

import (
	"context"
	"errors"
	"fmt"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
)

// Side enumerates order directions accepted by venues.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a short order.
	Sell Side = "SELL"
)

// SideFor maps a crossover direction onto the order side it triggers.
func SideFor(dir signal.Direction) Side {
	if dir == signal.Golden {
		return Buy
	}
	return Sell
}

// Order is a placement request submitted to a venue.
type Order struct {
	Symbol        string
	Side          Side
	Qty           float64
	ClientOrderID string
}

// Confirmation is the venue acknowledgement of a filled or accepted order.
type Confirmation struct {
	OrderID string
	Price   float64
}

// Venue places orders against a trading backend.
type Venue interface {
	SubmitOrder(ctx context.Context, order Order) (Confirmation, error)
}

// ErrorKind splits venue failures into retryable and terminal classes.
type ErrorKind string

const (
	// Transient covers network faults, timeouts, and rate limiting.
	Transient ErrorKind = "transient"
	// Permanent covers rejected orders, bad credentials, and invalid parameters.
	Permanent ErrorKind = "permanent"
)

// Error is a classified venue failure.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("venue %s failure: %s", e.Kind, e.Reason)
}

// NewTransient wraps reason as a retryable failure.
func NewTransient(reason string) *Error { return &Error{Kind: Transient, Reason: reason} }

// NewPermanent wraps reason as a terminal failure.
func NewPermanent(reason string) *Error { return &Error{Kind: Permanent, Reason: reason} }

// IsTransient reports whether err should be retried. Unclassified errors
// (plain network or context failures) count as transient so a flaky
// connection never permanently drops an order attempt.
func IsTransient(err error) bool {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind == Transient
	}
	return true
}
