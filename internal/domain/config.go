package domain

import (
	"errors"
	"fmt"
	"time"
)

// QuotingConfig holds every knob of the quoting engine. It is loaded once,
// validated, and passed by value; nothing mutates it after startup.
type QuotingConfig struct {
	Symbol string `yaml:"symbol"`

	// Spread & edge
	MinSpreadTicks         float64 `yaml:"min_spread_ticks"`
	EdgeTicks              float64 `yaml:"edge_ticks"`
	DynEdgeBase            float64 `yaml:"dyn_edge_base"`
	DynEdgeMax             float64 `yaml:"dyn_edge_max"`
	DynEdgeVolScale        float64 `yaml:"dyn_edge_vol_scale"`
	MinNetSpreadTicks      float64 `yaml:"min_net_spread_ticks"`
	MinExpectedProfitTicks float64 `yaml:"min_expected_profit_ticks"`

	// Orders
	OrderQty      float64 `yaml:"order_qty"`
	CancelAfterMS int     `yaml:"cancel_after_ms"`
	TimeInForce   string  `yaml:"time_in_force"`

	// Directional filter
	SizeImbalanceTolerance float64 `yaml:"size_imbalance_tolerance"`
	TradeAggWindowMS       int     `yaml:"trade_agg_window_ms"`
	AggressorBiasTol       float64 `yaml:"aggressor_bias_tol"`

	// Market state windows
	VolWindowMS       int `yaml:"vol_window_ms"`
	VolRefreshMS      int `yaml:"vol_refresh_ms"`
	BreakoutWindowMS  int `yaml:"breakout_window_ms"`
	BreakoutMinTrades int `yaml:"breakout_min_trades"`

	// Risk
	MaxOpenOrders      int `yaml:"max_open_orders"`
	MaxOrdersPerMinute int `yaml:"max_orders_per_minute"`
	CooldownMS         int `yaml:"cooldown_ms"`

	DryRun bool `yaml:"dry_run"`
}

// DefaultQuotingConfig mirrors the production defaults of the scalper.
func DefaultQuotingConfig() QuotingConfig {
	return QuotingConfig{
		Symbol:                 "BTCUSDT",
		MinSpreadTicks:         2,
		EdgeTicks:              2,
		DynEdgeBase:            2,
		DynEdgeMax:             8,
		DynEdgeVolScale:        4,
		MinNetSpreadTicks:      1,
		MinExpectedProfitTicks: 1,
		OrderQty:               0.001,
		CancelAfterMS:          2500,
		TimeInForce:            string(TimeInForcePostOnly),
		SizeImbalanceTolerance: 0.3,
		TradeAggWindowMS:       1000,
		AggressorBiasTol:       0.3,
		VolWindowMS:            30000,
		VolRefreshMS:           300,
		BreakoutWindowMS:       15000,
		BreakoutMinTrades:      5,
		MaxOpenOrders:          2,
		MaxOrdersPerMinute:     30,
		CooldownMS:             0,
		DryRun:                 true,
	}
}

func (c QuotingConfig) CancelAfter() time.Duration {
	return ms(c.CancelAfterMS)
}

func (c QuotingConfig) TradeAggWindow() time.Duration {
	return ms(c.TradeAggWindowMS)
}

func (c QuotingConfig) VolWindow() time.Duration {
	return ms(c.VolWindowMS)
}

func (c QuotingConfig) VolRefresh() time.Duration {
	return ms(c.VolRefreshMS)
}

func (c QuotingConfig) BreakoutWindow() time.Duration {
	return ms(c.BreakoutWindowMS)
}

func (c QuotingConfig) Cooldown() time.Duration {
	return ms(c.CooldownMS)
}

// TIF returns the validated time in force. Call Validate first.
func (c QuotingConfig) TIF() TimeInForce {
	return TimeInForce(c.TimeInForce)
}

// Validate checks numeric ranges and enumerations.
func (c QuotingConfig) Validate() error {
	if c.Symbol == "" {
		return &ConfigError{Field: "symbol", Err: ErrInvalidSymbol}
	}
	if _, err := ParseTimeInForce(c.TimeInForce); err != nil {
		return &ConfigError{Field: "time_in_force", Err: err}
	}

	checks := []struct {
		field string
		ok    bool
	}{
		{"min_spread_ticks", c.MinSpreadTicks >= 0},
		{"edge_ticks", c.EdgeTicks >= 1},
		{"dyn_edge_base", c.DynEdgeBase >= 1},
		{"dyn_edge_max", c.DynEdgeMax >= c.DynEdgeBase},
		{"dyn_edge_vol_scale", c.DynEdgeVolScale >= 1},
		{"min_net_spread_ticks", c.MinNetSpreadTicks >= 0},
		{"min_expected_profit_ticks", c.MinExpectedProfitTicks >= 0},
		{"order_qty", c.OrderQty > 0},
		{"cancel_after_ms", c.CancelAfterMS > 0},
		{"size_imbalance_tolerance", c.SizeImbalanceTolerance >= 0 && c.SizeImbalanceTolerance <= 1},
		{"trade_agg_window_ms", c.TradeAggWindowMS > 0},
		{"aggressor_bias_tol", c.AggressorBiasTol >= 0 && c.AggressorBiasTol <= 1},
		{"vol_window_ms", c.VolWindowMS > 0},
		{"vol_refresh_ms", c.VolRefreshMS >= 0},
		{"breakout_window_ms", c.BreakoutWindowMS > 0},
		{"breakout_min_trades", c.BreakoutMinTrades >= 2},
		{"max_open_orders", c.MaxOpenOrders >= 1},
		{"max_orders_per_minute", c.MaxOrdersPerMinute >= 1},
		{"cooldown_ms", c.CooldownMS >= 0},
	}
	for _, chk := range checks {
		if !chk.ok {
			return &ConfigError{Field: chk.field, Err: errOutOfRange}
		}
	}
	return nil
}

var errOutOfRange = errors.New("value out of range")

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// String keeps secrets-free config dumps readable in logs.
func (c QuotingConfig) String() string {
	return fmt.Sprintf("%s spread>=%g edge=%g..%g net>=%g qty=%g ttl=%dms tif=%s maxOpen=%d perMin=%d dryRun=%t",
		c.Symbol, c.MinSpreadTicks, c.DynEdgeBase, c.DynEdgeMax, c.MinNetSpreadTicks,
		c.OrderQty, c.CancelAfterMS, c.TimeInForce, c.MaxOpenOrders, c.MaxOrdersPerMinute, c.DryRun)
}
