package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is the top of book. Replaced wholesale on each update.
type MarketSnapshot struct {
	BestBid float64 `json:"best_bid"`
	BestAsk float64 `json:"best_ask"`
	BidSize float64 `json:"bid_size"`
	AskSize float64 `json:"ask_size"`
}

// Valid reports whether both prices are finite and positive and the book is not crossed.
func (s MarketSnapshot) Valid() bool {
	if !finite(s.BestBid) || !finite(s.BestAsk) {
		return false
	}
	return s.BestBid > 0 && s.BestAsk >= s.BestBid
}

// SizeImbalance returns (bid - ask) / (bid + ask), 0 when either size is unusable.
func (s MarketSnapshot) SizeImbalance() float64 {
	if !finite(s.BidSize) || !finite(s.AskSize) {
		return 0
	}
	total := s.BidSize + s.AskSize
	if total <= 0 {
		return 0
	}
	return (s.BidSize - s.AskSize) / total
}

// Trade is one print from the public tape.
type Trade struct {
	Side  Side
	Price float64
	Qty   float64
	Time  time.Time
}

// Valid drops prints with non-finite or negative numbers or a missing timestamp.
func (t Trade) Valid() bool {
	return finite(t.Price) && finite(t.Qty) && t.Price > 0 && t.Qty >= 0 && !t.Time.IsZero()
}

// Instrument is static exchange metadata required before quoting starts.
type Instrument struct {
	Symbol      string          `json:"symbol"`
	TickSize    decimal.Decimal `json:"tick_size"`
	QtyStep     decimal.Decimal `json:"qty_step"`
	MinOrderQty decimal.Decimal `json:"min_order_qty"`
}

// Validate fails with ErrMissingInstrument when the grid is unusable.
func (i Instrument) Validate() error {
	if !i.TickSize.IsPositive() {
		return &ConfigError{Field: "tick_size", Err: ErrMissingInstrument}
	}
	if !i.QtyStep.IsPositive() {
		return &ConfigError{Field: "qty_step", Err: ErrMissingInstrument}
	}
	return nil
}

// Tick returns the tick size as a float for hot-path arithmetic.
func (i Instrument) Tick() float64 {
	return i.TickSize.InexactFloat64()
}

// RoundPrice snaps a price to the nearest tick.
func (i Instrument) RoundPrice(price float64) float64 {
	p := decimal.NewFromFloat(price)
	return p.Div(i.TickSize).Round(0).Mul(i.TickSize).InexactFloat64()
}

// RoundQty floors a quantity to the step, never below the minimum order size.
func (i Instrument) RoundQty(qty float64) float64 {
	q := decimal.NewFromFloat(qty).Div(i.QtyStep).Floor().Mul(i.QtyStep)
	if q.LessThan(i.MinOrderQty) {
		q = i.MinOrderQty
	}
	return q.InexactFloat64()
}

// SpreadTicks computes (ask - bid) / tick in exact decimal arithmetic so that
// prices on the tick grid give integral results.
func (i Instrument) SpreadTicks(bid, ask float64) float64 {
	spread := decimal.NewFromFloat(ask).Sub(decimal.NewFromFloat(bid))
	return spread.Div(i.TickSize).InexactFloat64()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
