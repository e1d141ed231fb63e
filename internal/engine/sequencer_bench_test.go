package engine

import (
	"context"
	"testing"
	"time"

	"crypto_scalper/internal/domain"
	"crypto_scalper/internal/event"
)

// BenchmarkSequencer_BookUpdate measures the decision path for a book update
// that does not quote (spread too tight).
func BenchmarkSequencer_BookUpdate(b *testing.B) {
	seq := NewSequencer(domain.DefaultQuotingConfig(), testInstrument(), Options{InboxSize: 16})
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		ev := event.AcquireBookUpdateEvent()
		ev.Symbol = "BTCUSDT"
		ev.Snapshot = domain.MarketSnapshot{BestBid: 100.0, BestAsk: 100.1, BidSize: 1, AskSize: 1}
		seq.processEvent(ctx, ev)
	}
}

// BenchmarkSequencer_Trades measures trade ingestion including window pruning.
func BenchmarkSequencer_Trades(b *testing.B) {
	seq := NewSequencer(domain.DefaultQuotingConfig(), testInstrument(), Options{InboxSize: 16})
	ctx := context.Background()
	start := time.Now()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		ts := start.Add(time.Duration(i) * time.Millisecond)
		seq.processEvent(ctx, &event.TradesEvent{
			BaseEvent: event.BaseEvent{Ts: ts},
			Symbol:    "BTCUSDT",
			Trades: []domain.Trade{
				{Side: domain.SideBuy, Price: 100 + float64(i%10)*0.1, Qty: 0.01, Time: ts},
			},
		})
	}
}
