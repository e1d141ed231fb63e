package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"crypto_scalper/internal/domain"

	"github.com/google/uuid"
)

// PaperExchange accepts every order without sending anything to a venue.
// Used in dry-run mode; orders stay resting until cancelled.
type PaperExchange struct {
	mu      sync.Mutex
	resting map[string]domain.LimitOrder
	placed  int
}

// NewPaperExchange creates an empty dry-run exchange.
func NewPaperExchange() *PaperExchange {
	return &PaperExchange{
		resting: make(map[string]domain.LimitOrder),
	}
}

// PlaceLimit records the order and returns a synthetic id.
func (p *PaperExchange) PlaceLimit(ctx context.Context, order domain.LimitOrder) (domain.PlaceResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.PlaceResult{}, err
	}
	if !order.Side.Valid() || order.Price <= 0 || order.Qty <= 0 {
		return domain.PlaceResult{}, fmt.Errorf("paper place: invalid order %+v", order)
	}

	id := "dry-" + uuid.NewString()

	p.mu.Lock()
	p.resting[id] = order
	p.placed++
	p.mu.Unlock()

	slog.Debug("DRY_RUN_PLACE",
		slog.String("order_id", id),
		slog.String("side", string(order.Side)),
		slog.Float64("price", order.Price),
		slog.Float64("qty", order.Qty),
	)
	return domain.PlaceResult{OrderID: id, OrderLinkID: id}, nil
}

// CancelOrder always succeeds, even for unknown ids.
func (p *PaperExchange) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	delete(p.resting, orderID)
	p.mu.Unlock()

	slog.Debug("DRY_RUN_CANCEL", slog.String("order_id", orderID))
	return nil
}

// CancelAll drops every resting order.
func (p *PaperExchange) CancelAll(ctx context.Context) error {
	p.mu.Lock()
	n := len(p.resting)
	p.resting = make(map[string]domain.LimitOrder)
	p.mu.Unlock()

	slog.Info("DRY_RUN_CANCEL_ALL", slog.Int("orders", n))
	return nil
}

// Resting returns the number of orders not yet cancelled.
func (p *PaperExchange) Resting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resting)
}

// Placed returns the total number of accepted placements.
func (p *PaperExchange) Placed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.placed
}
