package domain

import (
	"time"
)

// OrderRecord is the persisted lifecycle of one quote
type OrderRecord struct {
	OrderID   string    `gorm:"primaryKey" json:"order_id"`
	Symbol    string    `json:"symbol" gorm:"index"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Qty       float64   `json:"qty"`
	Status    string    `json:"status" gorm:"index"` // Open, Filled, Cancelled, Rejected, Expired
	Reason    string    `json:"reason"`              // ttl, exchange, shutdown
	PlacedAt  time.Time `json:"placed_at"`
	ClosedAt  time.Time `json:"closed_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FillRecord is one executed quote with its realized PnL
type FillRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   string    `json:"order_id" gorm:"index"`
	Symbol    string    `json:"symbol" gorm:"index"`
	Side      string    `json:"side"`
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"`
	Fee       float64   `json:"fee"`
	PnL       float64   `json:"pnl" gorm:"column:pnl"`
	FilledAt  time.Time `json:"filled_at" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}
