package strategy

import "crypto_scalper/internal/domain"

// Permission says which sides of a proposal may be quoted.
type Permission struct {
	BuyAllowed  bool
	SellAllowed bool
}

// Any reports whether at least one side may be quoted.
func (p Permission) Any() bool {
	return p.BuyAllowed || p.SellAllowed
}

// FilterParams are the directional-skew tolerances.
type FilterParams struct {
	SizeImbalanceTolerance float64
	AggressorBiasTol       float64
}

// Filter withholds the side that would trade against book pressure or
// against the recent aggressor. Overrides only ever narrow permission.
func Filter(bidSize, askSize, aggressionBias float64, p FilterParams) Permission {
	imb := domain.MarketSnapshot{BidSize: bidSize, AskSize: askSize}.SizeImbalance()

	perm := Permission{
		BuyAllowed:  imb >= -p.SizeImbalanceTolerance,
		SellAllowed: imb <= p.SizeImbalanceTolerance,
	}

	// Buyers dominating the tape: do not sell into the move, and vice versa.
	if aggressionBias > p.AggressorBiasTol {
		perm.SellAllowed = false
	} else if aggressionBias < -p.AggressorBiasTol {
		perm.BuyAllowed = false
	}
	return perm
}
