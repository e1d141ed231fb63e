package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Position is the signed inventory of the quoted instrument with its
// average entry price. Long is positive.
type Position struct {
	Symbol   string          `json:"symbol"`
	Qty      decimal.Decimal `json:"qty"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	Realized decimal.Decimal `json:"realized_pnl"`
	Fees     decimal.Decimal `json:"fees"`
}

// NewPosition creates a flat position.
func NewPosition(symbol string) *Position {
	return &Position{Symbol: symbol}
}

// Apply books a fill and returns the PnL realized by its reducing part.
// Fees accumulate separately.
func (p *Position) Apply(side Side, qty, price, fee decimal.Decimal) decimal.Decimal {
	if !side.Valid() || !qty.IsPositive() {
		return decimal.Zero
	}
	signed := qty
	if side == SideSell {
		signed = qty.Neg()
	}
	p.Fees = p.Fees.Add(fee)

	// Opening or adding in the same direction.
	if p.Qty.IsZero() || p.Qty.Sign() == signed.Sign() {
		total := p.Qty.Abs().Add(qty)
		p.AvgPrice = p.Qty.Abs().Mul(p.AvgPrice).Add(qty.Mul(price)).Div(total)
		p.Qty = p.Qty.Add(signed)
		return decimal.Zero
	}

	// Reducing, possibly flipping.
	closeQty := decimal.Min(qty, p.Qty.Abs())
	pnl := price.Sub(p.AvgPrice).Mul(closeQty)
	if p.Qty.IsNegative() {
		pnl = pnl.Neg()
	}
	p.Realized = p.Realized.Add(pnl)

	p.Qty = p.Qty.Add(signed)
	switch {
	case p.Qty.IsZero():
		p.AvgPrice = decimal.Zero
	case p.Qty.Sign() == signed.Sign():
		// Flipped: the remainder was opened at the fill price.
		p.AvgPrice = price
	}
	return pnl
}

// VerifyInvariant panics when the position is internally inconsistent.
func (p *Position) VerifyInvariant() {
	if p.AvgPrice.IsNegative() {
		panic(fmt.Sprintf("POSITION_INVARIANT_NEGATIVE_AVG: %s = %s", p.Symbol, p.AvgPrice))
	}
	if p.Qty.IsZero() && !p.AvgPrice.IsZero() {
		panic(fmt.Sprintf("POSITION_INVARIANT_FLAT_WITH_AVG: %s avg=%s", p.Symbol, p.AvgPrice))
	}
}

// Snapshot returns a copy for external readers.
func (p *Position) Snapshot() Position {
	return *p
}
