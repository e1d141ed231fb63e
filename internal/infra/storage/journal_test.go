package storage

import (
	"testing"
	"time"

	"crypto_scalper/internal/domain"
)

func TestJournal_Lifecycle(t *testing.T) {
	s := setupTestDB(t)
	j := NewJournal(s, 16)
	now := time.UnixMilli(1700000000000)

	j.RecordLog(domain.LogEntry{Kind: domain.LogPlaceAttempt, Symbol: "BTCUSDT", Side: domain.SideBuy, Time: now})
	j.RecordLog(domain.LogEntry{Kind: domain.LogPlaced, Symbol: "BTCUSDT", OrderID: "o1", Side: domain.SideBuy, Price: 100.2, Qty: 0.001, Time: now})
	j.RecordLog(domain.LogEntry{Kind: domain.LogPlaced, Symbol: "BTCUSDT", OrderID: "o2", Side: domain.SideSell, Price: 100.8, Qty: 0.001, Time: now})
	j.RecordLog(domain.LogEntry{Kind: domain.LogStatus, Symbol: "BTCUSDT", OrderID: "o1", Status: domain.OrderStatusPartiallyFilled, Time: now})
	j.RecordLog(domain.LogEntry{Kind: domain.LogStatus, Symbol: "BTCUSDT", OrderID: "o1", Status: domain.OrderStatusFilled, Time: now.Add(time.Second)})
	j.RecordLog(domain.LogEntry{Kind: domain.LogCancel, Symbol: "BTCUSDT", OrderID: "o2", Reason: "ttl", Time: now.Add(2 * time.Second)})
	j.RecordFill(domain.Fill{Symbol: "BTCUSDT", OrderID: "o1", Side: domain.SideBuy, Qty: 0.001, Price: 100.2, Time: now.Add(time.Second)})
	j.Close()

	o1, _ := s.GetOrder("o1")
	if o1 == nil || o1.Status != "Filled" {
		t.Errorf("o1 = %+v", o1)
	}
	o2, _ := s.GetOrder("o2")
	if o2 == nil || o2.Status != StatusExpired || o2.Reason != "ttl" {
		t.Errorf("o2 = %+v", o2)
	}
	fills, _ := s.RecentFills("BTCUSDT", 10)
	if len(fills) != 1 || fills[0].OrderID != "o1" {
		t.Errorf("fills = %+v", fills)
	}
	if j.Dropped() != 0 {
		t.Errorf("Dropped = %d", j.Dropped())
	}
}

func TestJournal_DropsWhenFull(t *testing.T) {
	s := setupTestDB(t)
	// Writer not started: queue fills deterministically.
	j := &Journal{store: s, queue: make(chan journalOp, 2)}

	for i := 0; i < 5; i++ {
		j.RecordFill(domain.Fill{Symbol: "BTCUSDT", OrderID: "x"})
	}
	if j.Dropped() != 3 {
		t.Errorf("Dropped = %d, want 3", j.Dropped())
	}
}

func TestJournal_CloseIdempotent(t *testing.T) {
	j := NewJournal(setupTestDB(t), 4)
	j.Close()
	j.Close()

	// Writes after close are ignored, not panics.
	j.RecordFill(domain.Fill{Symbol: "BTCUSDT"})
}
