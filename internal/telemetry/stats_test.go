package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"crypto_scalper/internal/domain"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) Broadcast(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Type
	}
	return out
}

func TestStats_RecordFill(t *testing.T) {
	rec := &recorder{}
	s := NewStats("BTCUSDT", rec)
	now := time.UnixMilli(1700000000000)

	s.RecordFill(domain.Fill{Symbol: "BTCUSDT", OrderID: "a", Side: domain.SideBuy, Qty: 0.1, Price: 100, Fee: 0.01, Time: now})
	s.RecordFill(domain.Fill{Symbol: "BTCUSDT", OrderID: "b", Side: domain.SideSell, Qty: 0.2, Price: 101, Fee: 0.02, PnL: 0.1, Time: now.Add(time.Second)})

	snap := s.Snapshot()
	if snap.Trades != 2 {
		t.Errorf("Trades = %d", snap.Trades)
	}
	// 0.1 + 0.2 must be exact
	if snap.FilledQty != 0.3 {
		t.Errorf("FilledQty = %v, want 0.3", snap.FilledQty)
	}
	if snap.RealizedPnL != 0.1 || snap.Fees != 0.03 || snap.NetPnL != 0.07 {
		t.Errorf("pnl = %v fees = %v net = %v", snap.RealizedPnL, snap.Fees, snap.NetPnL)
	}
	if len(snap.LastFills) != 2 || snap.LastFills[0].OrderID != "b" {
		t.Errorf("LastFills should be newest first: %+v", snap.LastFills)
	}
	if !snap.UpdatedAt.Equal(now.Add(time.Second)) {
		t.Errorf("UpdatedAt = %v", snap.UpdatedAt)
	}

	want := []string{MessageFill, MessageStats, MessageFill, MessageStats}
	if got := rec.types(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("broadcasts = %v, want %v", got, want)
	}
}

func TestStats_FillWindow(t *testing.T) {
	s := NewStats("BTCUSDT", nil)
	for i := 0; i < maxRecentFills+10; i++ {
		s.RecordFill(domain.Fill{OrderID: fmt.Sprintf("o%d", i), Qty: 1})
	}

	snap := s.Snapshot()
	if snap.Trades != maxRecentFills+10 {
		t.Errorf("Trades = %d", snap.Trades)
	}
	if len(snap.LastFills) != maxRecentFills {
		t.Fatalf("LastFills = %d, want %d", len(snap.LastFills), maxRecentFills)
	}
	if snap.LastFills[0].OrderID != fmt.Sprintf("o%d", maxRecentFills+9) {
		t.Errorf("newest fill = %s", snap.LastFills[0].OrderID)
	}
}

func TestStats_LogRing(t *testing.T) {
	s := NewStats("BTCUSDT", nil)
	total := maxRecentLogs + 7
	for i := 0; i < total; i++ {
		s.RecordLog(domain.LogEntry{Kind: domain.LogPlaced, OrderID: fmt.Sprintf("o%d", i)})
	}

	logs := s.RecentLogs()
	if len(logs) != maxRecentLogs {
		t.Fatalf("RecentLogs = %d, want %d", len(logs), maxRecentLogs)
	}
	if logs[0].OrderID != "o7" || logs[len(logs)-1].OrderID != fmt.Sprintf("o%d", total-1) {
		t.Errorf("ring order broken: first=%s last=%s", logs[0].OrderID, logs[len(logs)-1].OrderID)
	}
}

func TestStats_Greeting(t *testing.T) {
	s := NewStats("BTCUSDT", nil)
	s.RecordLog(domain.LogEntry{Kind: domain.LogPlaceAttempt})
	s.RecordLog(domain.LogEntry{Kind: domain.LogPlaced})

	msgs := s.Greeting()
	if len(msgs) != 3 {
		t.Fatalf("Greeting = %d messages", len(msgs))
	}
	if msgs[0].Type != MessageStats || msgs[1].Type != MessageLog || msgs[2].Type != MessageLog {
		t.Errorf("unexpected greeting %+v", msgs)
	}
	if e := msgs[2].Payload.(domain.LogEntry); e.Kind != domain.LogPlaced {
		t.Errorf("logs should be oldest first, last = %s", e.Kind)
	}
}

func TestStats_Concurrent(t *testing.T) {
	s := NewStats("BTCUSDT", &recorder{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.RecordFill(domain.Fill{Qty: 1})
				s.RecordLog(domain.LogEntry{Kind: domain.LogStatus})
				s.Snapshot()
			}
		}()
	}
	wg.Wait()

	if s.Snapshot().Trades != 800 {
		t.Errorf("Trades = %d, want 800", s.Snapshot().Trades)
	}
}
