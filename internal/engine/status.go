package engine

import (
	"time"

	"crypto_scalper/internal/domain"
	"crypto_scalper/internal/market"
	"crypto_scalper/internal/strategy"
)

// Status is an immutable view of the decision loop for external readers.
type Status struct {
	Symbol           string                `json:"symbol"`
	Book             domain.MarketSnapshot `json:"book"`
	Volatility       float64               `json:"volatility"`
	AggressionBias   float64               `json:"aggression_bias"`
	Breakout         market.Breakout       `json:"breakout"`
	Decision         strategy.Decision     `json:"decision"`
	OpenOrders       []domain.OpenOrder    `json:"open_orders"`
	PendingOrders    int                   `json:"pending_orders"`
	RecentPlacements int                   `json:"recent_placements"`
	CooldownUntil    time.Time             `json:"cooldown_until"`
	Position         domain.Position       `json:"position"`
	Processed        uint64                `json:"processed"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// Metrics receives loop gauges. Implementations must be cheap.
type Metrics interface {
	ObserveDenial(reason string)
	SetOpenOrders(n int)
	SetSignals(volatility, aggressionBias, momentumTicks float64)
}

type nopMetrics struct{}

func (nopMetrics) ObserveDenial(string)                 {}
func (nopMetrics) SetOpenOrders(int)                    {}
func (nopMetrics) SetSignals(float64, float64, float64) {}
