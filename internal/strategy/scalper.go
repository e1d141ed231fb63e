package strategy

import (
	"crypto_scalper/internal/domain"
)

// Scalper quotes inside the spread on whichever sides the filter allows.
// It keeps the last decision for the status page.
type Scalper struct {
	inst   domain.Instrument
	edge   EdgeParams
	filter FilterParams

	last Decision
}

// Decision is the outcome of the last book update.
type Decision struct {
	Proposal   Proposal   `json:"proposal"`
	Quotable   bool       `json:"quotable"`
	Permission Permission `json:"permission"`
}

// NewScalper creates the strategy for one instrument.
func NewScalper(cfg domain.QuotingConfig, inst domain.Instrument) *Scalper {
	return &Scalper{
		inst: inst,
		edge: NewEdgeParams(cfg),
		filter: FilterParams{
			SizeImbalanceTolerance: cfg.SizeImbalanceTolerance,
			AggressorBiasTol:       cfg.AggressorBiasTol,
		},
	}
}

// OnBookUpdate evaluates the book and returns at most one action per side.
// A single shared edge is used for both sides even when one is filtered out.
func (s *Scalper) OnBookUpdate(snap domain.MarketSnapshot, sig Signals) []Action {
	proposal, ok := Evaluate(snap, s.inst, sig.Volatility, s.edge)
	s.last = Decision{Proposal: proposal, Quotable: ok}
	if !ok {
		return nil
	}

	perm := Filter(snap.BidSize, snap.AskSize, sig.AggressionBias, s.filter)
	s.last.Permission = perm

	actions := make([]Action, 0, 2)
	if perm.BuyAllowed {
		actions = append(actions, Action{Side: domain.SideBuy, Price: proposal.BuyPrice})
	}
	if perm.SellAllowed {
		actions = append(actions, Action{Side: domain.SideSell, Price: proposal.SellPrice})
	}
	return actions
}

// LastDecision returns the outcome of the most recent book update.
func (s *Scalper) LastDecision() Decision {
	return s.last
}
