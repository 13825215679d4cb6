package venue

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Paper is an in-memory venue that confirms every order immediately with a
// synthetic order id. Marks supply the fill price per symbol; unknown symbols
// fill at zero. Errs lets tests and replays script failures ahead of time.
type Paper struct {
	mu     sync.Mutex
	log    zerolog.Logger
	marks  map[string]float64
	errs   []error
	orders []Order
}

// NewPaper returns an empty paper venue.
func NewPaper(log zerolog.Logger) *Paper {
	return &Paper{log: log, marks: make(map[string]float64)}
}

// Mark sets the current fill price for a symbol.
func (p *Paper) Mark(symbol string, price float64) {
	p.mu.Lock()
	p.marks[symbol] = price
	p.mu.Unlock()
}

// FailNext queues errors returned by upcoming SubmitOrder calls, in order,
// before successful fills resume.
func (p *Paper) FailNext(errs ...error) {
	p.mu.Lock()
	p.errs = append(p.errs, errs...)
	p.mu.Unlock()
}

// SubmitOrder confirms the order at the current mark, or pops a scripted error.
func (p *Paper) SubmitOrder(ctx context.Context, order Order) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return Confirmation{}, NewTransient(err.Error())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return Confirmation{}, err
	}

	p.orders = append(p.orders, order)
	conf := Confirmation{OrderID: uuid.NewString(), Price: p.marks[order.Symbol]}
	p.log.Info().
		Str("sym", order.Symbol).
		Str("side", string(order.Side)).
		Float64("qty", order.Qty).
		Float64("px", conf.Price).
		Str("order_id", conf.OrderID).
		Msg("paper fill")
	return conf, nil
}

// Orders returns a copy of every confirmed order in submission sequence.
func (p *Paper) Orders() []Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Order, len(p.orders))
	copy(out, p.orders)
	return out
}
