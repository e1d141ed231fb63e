package engine

import (
	"crypto_scalper/internal/domain"
	"crypto_scalper/internal/event"
)

const (
	typePlacementResult event.Type = "PLACEMENT_RESULT"
	typeOrderExpired    event.Type = "ORDER_EXPIRED"
)

// placementResult carries an exchange placement outcome back into the loop.
type placementResult struct {
	event.BaseEvent
	order   domain.LimitOrder
	orderID string
	err     error
}

func (e *placementResult) GetType() event.Type { return typePlacementResult }

// orderExpired is posted by an order's TTL task.
type orderExpired struct {
	event.BaseEvent
	orderID string
	gen     uint64
}

func (e *orderExpired) GetType() event.Type { return typeOrderExpired }
