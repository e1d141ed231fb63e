package strategy

import (
	"crypto_scalper/internal/domain"
)

// Action is one side of a two-sided quote that the strategy wants placed.
type Action struct {
	Side  domain.Side
	Price float64
}

// Signals are the aggregator readings the strategy consumes.
type Signals struct {
	Volatility     float64
	AggressionBias float64
}

// Strategy turns a book update into quote actions.
// It is called synchronously by the Sequencer and must not block.
type Strategy interface {
	OnBookUpdate(snap domain.MarketSnapshot, sig Signals) []Action
}
