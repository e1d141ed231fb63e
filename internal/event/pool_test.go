package event

import (
	"testing"
	"time"

	"crypto_scalper/internal/domain"
)

func TestBookUpdatePool_ResetsOnRelease(t *testing.T) {
	ev := AcquireBookUpdateEvent()
	ev.Ts = time.Now()
	ev.Symbol = "BTCUSDT"
	ev.Snapshot = domain.MarketSnapshot{BestBid: 100, BestAsk: 101}

	ReleaseBookUpdateEvent(ev)

	if ev.Symbol != "" || !ev.Ts.IsZero() || ev.Snapshot != (domain.MarketSnapshot{}) {
		t.Errorf("released event not reset: %+v", ev)
	}
}

func TestEventTypes(t *testing.T) {
	var evs = []Event{&BookUpdateEvent{}, &TradesEvent{}, &OrderStatusEvent{}}
	want := []Type{TypeBookUpdate, TypeTrades, TypeOrderStatus}
	for i, ev := range evs {
		if ev.GetType() != want[i] {
			t.Errorf("event %d type = %s, want %s", i, ev.GetType(), want[i])
		}
	}
}

func BenchmarkBookUpdatePool(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ev := AcquireBookUpdateEvent()
		ev.Snapshot.BestBid = float64(i)
		ReleaseBookUpdateEvent(ev)
	}
}
