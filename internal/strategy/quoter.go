package strategy

import (
	"math"

	"crypto_scalper/internal/domain"
)

// Proposal is a candidate two-sided quote.
type Proposal struct {
	SpreadTicks    float64
	Edge           float64
	NetSpreadTicks float64
	BuyPrice       float64
	SellPrice      float64
}

// EdgeParams are the spread and edge thresholds from the quoting config.
type EdgeParams struct {
	MinSpreadTicks         float64
	DynEdgeBase            float64
	DynEdgeMax             float64
	DynEdgeVolScale        float64
	MinNetSpreadTicks      float64
	MinExpectedProfitTicks float64
}

// NewEdgeParams normalizes the config the way the quoting engine expects:
// base at least 1 tick, max at least base, volatility scale at least 1.
func NewEdgeParams(cfg domain.QuotingConfig) EdgeParams {
	base := math.Max(1, cfg.DynEdgeBase)
	return EdgeParams{
		MinSpreadTicks:         cfg.MinSpreadTicks,
		DynEdgeBase:            base,
		DynEdgeMax:             math.Max(base, cfg.DynEdgeMax),
		DynEdgeVolScale:        math.Max(1, cfg.DynEdgeVolScale),
		MinNetSpreadTicks:      cfg.MinNetSpreadTicks,
		MinExpectedProfitTicks: cfg.MinExpectedProfitTicks,
	}
}

// Edge returns the dynamic edge in whole ticks for a volatility estimate.
// The result lies in [1, DynEdgeMax] and never decreases as volatility grows.
func (p EdgeParams) Edge(volatility float64) float64 {
	if math.IsNaN(volatility) || volatility < 0 {
		volatility = 0
	}
	// Half-up rounding; the argument is never negative here.
	edge := math.Floor(p.DynEdgeBase + volatility/p.DynEdgeVolScale + 0.5)
	edge = math.Min(p.DynEdgeMax, edge)
	return math.Max(1, edge)
}

// Evaluate decides whether the book is wide enough to straddle. It has no
// side effects and returns ok=false when no quote is justified.
func Evaluate(snap domain.MarketSnapshot, inst domain.Instrument, volatility float64, p EdgeParams) (Proposal, bool) {
	if !snap.Valid() {
		return Proposal{}, false
	}
	spreadTicks := inst.SpreadTicks(snap.BestBid, snap.BestAsk)
	if spreadTicks < p.MinSpreadTicks {
		return Proposal{}, false
	}

	edge := p.Edge(volatility)
	net := spreadTicks - 2*edge
	if net < p.MinNetSpreadTicks || net < p.MinExpectedProfitTicks {
		return Proposal{}, false
	}

	tick := inst.Tick()
	return Proposal{
		SpreadTicks:    spreadTicks,
		Edge:           edge,
		NetSpreadTicks: net,
		BuyPrice:       inst.RoundPrice(snap.BestBid + edge*tick),
		SellPrice:      inst.RoundPrice(snap.BestAsk - edge*tick),
	}, true
}
