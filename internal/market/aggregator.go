package market

import (
	"math"
	"time"

	"crypto_scalper/internal/domain"
)

// Breakout summarizes price displacement over the breakout window.
type Breakout struct {
	Trades        int         `json:"trades"`
	MomentumTicks float64     `json:"momentum_ticks"` // last - first, in ticks
	Direction     domain.Side `json:"direction"`      // empty when inactive or flat
	Active        bool        `json:"active"`         // enough trades to be meaningful
}

// Aggregator derives volatility, breakout and aggression from the trade tape.
// Not safe for concurrent use; owned by the decision loop.
type Aggregator struct {
	tick              float64
	volRefresh        time.Duration
	aggWindow         time.Duration
	breakoutMinTrades int

	vol      *tradeWindow
	breakout *tradeWindow

	realized     float64
	lastComputed time.Time

	buyVol   float64
	sellVol  float64
	aggReset time.Time
}

// NewAggregator builds an aggregator for an instrument with the given tick.
func NewAggregator(cfg domain.QuotingConfig, tick float64) *Aggregator {
	if tick <= 0 {
		tick = 1
	}
	return &Aggregator{
		tick:              tick,
		volRefresh:        cfg.VolRefresh(),
		aggWindow:         cfg.TradeAggWindow(),
		breakoutMinTrades: cfg.BreakoutMinTrades,
		vol:               newTradeWindow(cfg.VolWindow()),
		breakout:          newTradeWindow(cfg.BreakoutWindow()),
	}
}

// IngestTrades folds a batch into every window and returns how many trades
// were accepted. Malformed trades are dropped silently.
func (a *Aggregator) IngestTrades(trades []domain.Trade, now time.Time) int {
	// Aggression uses a tumbling bucket that restarts once the window elapses.
	if now.Sub(a.aggReset) > a.aggWindow {
		a.buyVol, a.sellVol = 0, 0
		a.aggReset = now
	}

	accepted := 0
	for _, t := range trades {
		if !t.Valid() {
			continue
		}
		accepted++
		switch t.Side {
		case domain.SideBuy:
			a.buyVol += t.Qty
		case domain.SideSell:
			a.sellVol += t.Qty
		}
		a.vol.push(t.Time, t.Price)
		a.breakout.push(t.Time, t.Price)
	}

	a.vol.prune(now)
	a.breakout.prune(now)

	if now.Sub(a.lastComputed) > a.volRefresh {
		a.realized = a.computeVolatility()
		a.lastComputed = now
	}
	return accepted
}

// computeVolatility is the mean absolute tick change between consecutive trades.
func (a *Aggregator) computeVolatility() float64 {
	if a.vol.len() < 2 {
		return 0
	}
	var sum float64
	var n int
	for i := 1; i < a.vol.len(); i++ {
		dp := math.Abs(a.vol.points[i].price-a.vol.points[i-1].price) / a.tick
		if math.IsNaN(dp) || math.IsInf(dp, 0) {
			continue
		}
		sum += dp
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Volatility returns the last throttled realized-volatility estimate in ticks.
func (a *Aggregator) Volatility() float64 {
	return a.realized
}

// AggressionBias is (buy - sell) / (buy + sell) over the current bucket, 0 with no volume.
func (a *Aggregator) AggressionBias() float64 {
	total := a.buyVol + a.sellVol
	if total <= 0 {
		return 0
	}
	return (a.buyVol - a.sellVol) / total
}

// Breakout reports the displacement across the breakout window.
func (a *Aggregator) Breakout() Breakout {
	n := a.breakout.len()
	b := Breakout{Trades: n}
	if n < 2 {
		return b
	}
	b.MomentumTicks = (a.breakout.last().price - a.breakout.first().price) / a.tick
	b.Active = n >= a.breakoutMinTrades
	if b.Active {
		switch {
		case b.MomentumTicks > 0:
			b.Direction = domain.SideBuy
		case b.MomentumTicks < 0:
			b.Direction = domain.SideSell
		}
	}
	return b
}
