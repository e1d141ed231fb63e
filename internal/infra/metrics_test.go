package infra

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"crypto_scalper/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordLog(t *testing.T) {
	m := NewMetrics()

	m.RecordLog(domain.LogEntry{Kind: domain.LogPlaceAttempt, Side: domain.SideBuy})
	m.RecordLog(domain.LogEntry{Kind: domain.LogPlaceAttempt, Side: domain.SideBuy})
	m.RecordLog(domain.LogEntry{Kind: domain.LogPlaced, Side: domain.SideSell})
	m.RecordLog(domain.LogEntry{Kind: domain.LogStatus, Status: domain.OrderStatusFilled})

	if got := testutil.ToFloat64(m.orders.WithLabelValues("place_attempt", "Buy")); got != 2 {
		t.Errorf("Expected 2 buy attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.orders.WithLabelValues("placed", "Sell")); got != 1 {
		t.Errorf("Expected 1 sell placement, got %v", got)
	}
	if got := testutil.ToFloat64(m.statuses.WithLabelValues("Filled")); got != 1 {
		t.Errorf("Expected 1 filled status, got %v", got)
	}
}

func TestMetrics_Fills(t *testing.T) {
	m := NewMetrics()

	m.RecordFill(domain.Fill{Side: domain.SideBuy, PnL: 0})
	m.RecordFill(domain.Fill{Side: domain.SideSell, PnL: 1.5})
	m.RecordFill(domain.Fill{Side: domain.SideSell, PnL: -0.5})

	if got := testutil.ToFloat64(m.fills.WithLabelValues("Sell")); got != 2 {
		t.Errorf("Expected 2 sell fills, got %v", got)
	}
	if got := testutil.ToFloat64(m.realizedPnL); got != 1.0 {
		t.Errorf("Expected realized pnl 1.0, got %v", got)
	}
}

func TestMetrics_Gauges(t *testing.T) {
	m := NewMetrics()

	m.SetOpenOrders(2)
	m.SetSignals(3.5, -0.4, 7)
	m.ObserveDenial("cooldown")
	m.IncrementConnections()
	m.IncrementConnections()
	m.DecrementConnections()

	if got := testutil.ToFloat64(m.openOrders); got != 2 {
		t.Errorf("open orders = %v", got)
	}
	if got := testutil.ToFloat64(m.volatility); got != 3.5 {
		t.Errorf("volatility = %v", got)
	}
	if got := testutil.ToFloat64(m.bias); got != -0.4 {
		t.Errorf("bias = %v", got)
	}
	if got := testutil.ToFloat64(m.momentum); got != 7 {
		t.Errorf("momentum = %v", got)
	}
	if got := testutil.ToFloat64(m.denials.WithLabelValues("cooldown")); got != 1 {
		t.Errorf("denials = %v", got)
	}
	if got := testutil.ToFloat64(m.connections); got != 1 {
		t.Errorf("connections = %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordStreamError("public")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `scalper_stream_errors_total{stream="public"} 1`) {
		t.Errorf("metrics output missing stream errors:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("runtime collector should be registered")
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.SetOpenOrders(1)
	if got := testutil.ToFloat64(b.openOrders); got != 0 {
		t.Errorf("registries should be independent, got %v", got)
	}
}
