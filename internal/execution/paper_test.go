package execution

import (
	"context"
	"strings"
	"sync"
	"testing"

	"crypto_scalper/internal/domain"
)

func TestPaperExchange_Place(t *testing.T) {
	paper := NewPaperExchange()

	order := domain.LimitOrder{
		Symbol:      "BTCUSDT",
		Side:        domain.SideBuy,
		Price:       100.2,
		Qty:         0.001,
		TimeInForce: domain.TimeInForcePostOnly,
	}

	res, err := paper.PlaceLimit(context.Background(), order)
	if err != nil {
		t.Fatalf("PlaceLimit failed: %v", err)
	}
	if !strings.HasPrefix(res.OrderID, "dry-") {
		t.Errorf("Expected dry- prefix, got %q", res.OrderID)
	}
	if paper.Resting() != 1 || paper.Placed() != 1 {
		t.Errorf("Resting = %d, Placed = %d", paper.Resting(), paper.Placed())
	}

	res2, _ := paper.PlaceLimit(context.Background(), order)
	if res2.OrderID == res.OrderID {
		t.Error("ids must be unique")
	}
}

func TestPaperExchange_InvalidOrder(t *testing.T) {
	paper := NewPaperExchange()

	tests := []struct {
		name  string
		order domain.LimitOrder
	}{
		{"no side", domain.LimitOrder{Price: 1, Qty: 1}},
		{"zero price", domain.LimitOrder{Side: domain.SideSell, Qty: 1}},
		{"zero qty", domain.LimitOrder{Side: domain.SideSell, Price: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := paper.PlaceLimit(context.Background(), tt.order); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestPaperExchange_Cancel(t *testing.T) {
	paper := NewPaperExchange()
	ctx := context.Background()
	order := domain.LimitOrder{Side: domain.SideSell, Price: 101, Qty: 1}

	res, _ := paper.PlaceLimit(ctx, order)
	if err := paper.CancelOrder(ctx, res.OrderID); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if err := paper.CancelOrder(ctx, "unknown"); err != nil {
		t.Errorf("cancel of unknown id should succeed, got %v", err)
	}
	if paper.Resting() != 0 {
		t.Errorf("Resting = %d", paper.Resting())
	}

	paper.PlaceLimit(ctx, order)
	paper.PlaceLimit(ctx, order)
	if err := paper.CancelAll(ctx); err != nil {
		t.Fatalf("CancelAll failed: %v", err)
	}
	if paper.Resting() != 0 || paper.Placed() != 3 {
		t.Errorf("Resting = %d, Placed = %d", paper.Resting(), paper.Placed())
	}
}

func TestPaperExchange_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPaperExchange().PlaceLimit(ctx, domain.LimitOrder{Side: domain.SideBuy, Price: 1, Qty: 1})
	if err == nil {
		t.Error("Expected context error")
	}
}

func TestPaperExchange_Concurrent(t *testing.T) {
	paper := NewPaperExchange()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paper.PlaceLimit(context.Background(), domain.LimitOrder{Side: domain.SideBuy, Price: 1, Qty: 1})
		}()
	}
	wg.Wait()
	if paper.Placed() != 50 {
		t.Errorf("Placed = %d", paper.Placed())
	}
}

func TestPaperExchange_ImplementsInterface(t *testing.T) {
	var _ domain.Exchange = (*PaperExchange)(nil)
}
