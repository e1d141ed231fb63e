package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crypto_scalper/internal/domain"
	"crypto_scalper/internal/engine"

	"github.com/gorilla/websocket"
)

type staticStatus struct{ st engine.Status }

func (s staticStatus) GetStatus() engine.Status { return s.st }

type harness struct {
	stats  *Stats
	hub    *Hub
	srv    *httptest.Server
	cancel context.CancelFunc
}

func newHarness(t *testing.T, metrics http.Handler) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	var stats *Stats
	hub := NewHub(func() []Message { return stats.Greeting() })
	stats = NewStats("BTCUSDT", hub)
	go hub.Run(ctx)

	source := staticStatus{st: engine.Status{Symbol: "BTCUSDT", Processed: 42}}
	s := NewServer(":0", []string{"http://dash.local"}, stats, hub, source, metrics)
	srv := httptest.NewServer(s.Handler())

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &harness{stats: stats, hub: hub, srv: srv, cancel: cancel}
}

func TestServer_Status(t *testing.T) {
	h := newHarness(t, nil)
	h.stats.RecordFill(domain.Fill{Symbol: "BTCUSDT", Qty: 0.001, PnL: 0.5})

	resp, err := http.Get(h.srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var body StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Stats.Trades != 1 || body.Stats.RealizedPnL != 0.5 {
		t.Errorf("stats = %+v", body.Stats)
	}
	if body.Engine.Symbol != "BTCUSDT" || body.Engine.Processed != 42 {
		t.Errorf("engine = %+v", body.Engine)
	}
}

func TestServer_HealthAndMethods(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := http.Get(h.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health = %d", resp.StatusCode)
	}

	resp, err = http.Post(h.srv.URL+"/status", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d, want 405", resp.StatusCode)
	}
}

func TestServer_CORS(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		origin string
		want   string
	}{
		{"http://dash.local", "http://dash.local"},
		{"http://evil.local", ""},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/health", nil)
		req.Header.Set("Origin", tt.origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: Allow-Origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestServer_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("scalper_up 1\n"))
	})
	h := newHarness(t, metrics)

	resp, err := http.Get(h.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), "scalper_up") {
		t.Errorf("metrics body = %q", buf[:n])
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var raw struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&raw); err != nil {
		t.Fatalf("read: %v", err)
	}
	return Message{Type: raw.Type, Payload: raw.Payload}
}

func TestServer_WebSocket(t *testing.T) {
	h := newHarness(t, nil)
	h.stats.RecordLog(domain.LogEntry{Kind: domain.LogPlaced, OrderID: "o1"})

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Greeting: stats, then the retained log.
	if m := readMessage(t, conn); m.Type != MessageStats {
		t.Fatalf("first message = %s, want stats", m.Type)
	}
	m := readMessage(t, conn)
	if m.Type != MessageLog || !strings.Contains(string(m.Payload.(json.RawMessage)), `"o1"`) {
		t.Fatalf("second message = %s %s", m.Type, m.Payload)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.stats.RecordLog(domain.LogEntry{Kind: domain.LogCancel, OrderID: "o1", Reason: "ttl"})
	m = readMessage(t, conn)
	if m.Type != MessageLog || !strings.Contains(string(m.Payload.(json.RawMessage)), `"ttl"`) {
		t.Errorf("pushed message = %s %s", m.Type, m.Payload)
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	h := newHarness(t, nil)

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	readMessage(t, conn) // stats greeting

	deadline := time.Now().Add(2 * time.Second)
	for h.hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close after hub stop")
	}
	if h.hub.Clients() != 0 {
		t.Errorf("Clients = %d after stop", h.hub.Clients())
	}
}
