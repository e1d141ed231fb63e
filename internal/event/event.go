package event

import (
	"time"

	"crypto_scalper/internal/domain"
)

// Type identifies an event in logs and state dumps.
type Type string

const (
	TypeBookUpdate  Type = "BOOK_UPDATE"
	TypeTrades      Type = "TRADES"
	TypeOrderStatus Type = "ORDER_STATUS"
)

// Event is anything the decision loop consumes.
type Event interface {
	GetType() Type
	GetTs() time.Time
}

// BaseEvent carries the receive timestamp assigned by the producer.
type BaseEvent struct {
	Ts time.Time
}

func (e BaseEvent) GetTs() time.Time { return e.Ts }

// BookUpdateEvent is a top-of-book snapshot.
type BookUpdateEvent struct {
	BaseEvent
	Symbol   string
	Snapshot domain.MarketSnapshot
}

func (e *BookUpdateEvent) GetType() Type { return TypeBookUpdate }

// TradesEvent is one batch from the public tape, in exchange order.
type TradesEvent struct {
	BaseEvent
	Symbol string
	Trades []domain.Trade
}

func (e *TradesEvent) GetType() Type { return TypeTrades }

// OrderStatusEvent is a private-stream order update.
type OrderStatusEvent struct {
	BaseEvent
	Symbol string
	Update domain.OrderUpdate
}

func (e *OrderStatusEvent) GetType() Type { return TypeOrderStatus }
