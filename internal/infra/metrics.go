package infra

import (
	"net/http"

	"crypto_scalper/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes quoting activity in Prometheus format:
//
//	scalper_orders_total{kind,side}      placement attempts, placements, failures, cancels
//	scalper_order_status_total{status}   private-stream reconciliations
//	scalper_fills_total{side}            filled orders
//	scalper_denials_total{reason}        governor refusals
//	scalper_open_orders                  open plus pending orders
//	scalper_volatility_ticks             throttled realized volatility
//	scalper_aggression_bias              tape buy/sell imbalance
//	scalper_breakout_momentum_ticks      displacement over the breakout window
//	scalper_realized_pnl                 cumulative realized PnL
//	scalper_ws_connections               live exchange streams
//	scalper_stream_errors_total{stream}  read/parse failures on exchange streams
//
// It owns its registry so tests and multiple instances never collide.
type Metrics struct {
	registry *prometheus.Registry

	orders      *prometheus.CounterVec
	statuses    *prometheus.CounterVec
	fills       *prometheus.CounterVec
	denials     *prometheus.CounterVec
	streamErrs  *prometheus.CounterVec
	openOrders  prometheus.Gauge
	volatility  prometheus.Gauge
	bias        prometheus.Gauge
	momentum    prometheus.Gauge
	realizedPnL prometheus.Gauge
	connections prometheus.Gauge
}

// NewMetrics creates and registers all collectors, plus Go runtime metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_orders_total",
			Help: "Order actions by kind and side.",
		}, []string{"kind", "side"}),
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_order_status_total",
			Help: "Order status reports reconciled.",
		}, []string{"status"}),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_fills_total",
			Help: "Filled orders by side.",
		}, []string{"side"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_denials_total",
			Help: "Placements refused by the risk governor.",
		}, []string{"reason"}),
		streamErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_stream_errors_total",
			Help: "Exchange stream read or parse failures.",
		}, []string{"stream"}),
		openOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_open_orders",
			Help: "Open orders tracked by the lifecycle manager.",
		}),
		volatility: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_volatility_ticks",
			Help: "Realized volatility in ticks.",
		}),
		bias: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_aggression_bias",
			Help: "Buy/sell aggression bias in [-1, 1].",
		}),
		momentum: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_breakout_momentum_ticks",
			Help: "Price displacement over the breakout window in ticks.",
		}),
		realizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_realized_pnl",
			Help: "Cumulative realized PnL in quote currency.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_ws_connections",
			Help: "Active exchange WebSocket connections.",
		}),
	}

	m.registry.MustRegister(
		m.orders, m.statuses, m.fills, m.denials, m.streamErrs,
		m.openOrders, m.volatility, m.bias, m.momentum, m.realizedPnL, m.connections,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (for tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordLog implements domain.TelemetrySink.
func (m *Metrics) RecordLog(e domain.LogEntry) {
	switch e.Kind {
	case domain.LogStatus:
		m.statuses.WithLabelValues(string(e.Status)).Inc()
	default:
		m.orders.WithLabelValues(string(e.Kind), string(e.Side)).Inc()
	}
}

// RecordFill implements domain.TelemetrySink.
func (m *Metrics) RecordFill(f domain.Fill) {
	m.fills.WithLabelValues(string(f.Side)).Inc()
	m.realizedPnL.Add(f.PnL)
}

// ObserveDenial counts a governor refusal.
func (m *Metrics) ObserveDenial(reason string) {
	m.denials.WithLabelValues(reason).Inc()
}

// SetOpenOrders sets the open order gauge.
func (m *Metrics) SetOpenOrders(n int) {
	m.openOrders.Set(float64(n))
}

// SetSignals publishes the aggregator readings.
func (m *Metrics) SetSignals(volatility, aggressionBias, momentumTicks float64) {
	m.volatility.Set(volatility)
	m.bias.Set(aggressionBias)
	m.momentum.Set(momentumTicks)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.connections.Inc()
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.connections.Dec()
}

// RecordStreamError counts a failure on the named stream.
func (m *Metrics) RecordStreamError(stream string) {
	m.streamErrs.WithLabelValues(stream).Inc()
}
