package domain

import (
	"fmt"
	"strings"
	"time"
)

// LinkIDPrefix tags the client order ids the engine generates.
const LinkIDPrefix = "scalp-"

// Side is the book side of an order or the aggressor side of a trade.
type Side string

const (
	SideUnknown Side = ""
	SideBuy     Side = "Buy"
	SideSell    Side = "Sell"
)

// ParseSide accepts the exchange spelling case-insensitively ("Buy", "BUY", "buy").
func ParseSide(s string) Side {
	switch s {
	case "Buy", "BUY", "buy":
		return SideBuy
	case "Sell", "SELL", "sell":
		return SideSell
	default:
		return SideUnknown
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideUnknown
	}
}

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// TimeInForce of a limit order.
type TimeInForce string

const (
	TimeInForceGTC      TimeInForce = "GTC"
	TimeInForceIOC      TimeInForce = "IOC"
	TimeInForceFOK      TimeInForce = "FOK"
	TimeInForcePostOnly TimeInForce = "PostOnly"
)

// ParseTimeInForce validates a configured time-in-force value.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch tif := TimeInForce(s); tif {
	case TimeInForceGTC, TimeInForceIOC, TimeInForceFOK, TimeInForcePostOnly:
		return tif, nil
	default:
		return "", fmt.Errorf("unknown time in force %q", s)
	}
}

// OrderStatus as reported by the exchange private stream.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
	OrderStatusRejected        OrderStatus = "Rejected"
)

// IsTerminal reports whether no further updates are expected for the order.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// LimitOrder is a placement request handed to the exchange adapter.
// Price and Qty are already rounded to the instrument grid.
type LimitOrder struct {
	Symbol      string
	Side        Side
	Price       float64
	Qty         float64
	TimeInForce TimeInForce
	ReduceOnly  bool
}

// PlaceResult is what the adapter returns for an accepted placement.
type PlaceResult struct {
	OrderID     string
	OrderLinkID string
}

// OpenOrder is a resting quote owned by the lifecycle manager.
type OpenOrder struct {
	ID       string
	Side     Side
	Price    float64
	PlacedAt time.Time
}

// OrderUpdate is a private-stream status report for one order.
type OrderUpdate struct {
	OrderID   string
	LinkID    string // client order id, empty for orders entered without one
	Status    OrderStatus
	Side      Side
	Price     float64 // limit price
	AvgPrice  float64 // average execution price, 0 when nothing executed
	ExecQty   float64 // cumulative executed quantity
	ExecFee   float64 // cumulative fee in quote currency
	UpdatedAt time.Time
}

// EngineTagged reports whether the order was placed with an engine link id.
func (u OrderUpdate) EngineTagged() bool {
	return strings.HasPrefix(u.LinkID, LinkIDPrefix)
}
