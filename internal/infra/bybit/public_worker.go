package bybit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"crypto_scalper/internal/domain"
	"crypto_scalper/internal/event"
)

// PublicWorker streams level-1 order book and public trades for one symbol.
type PublicWorker struct {
	*stream
	symbol    string
	bookTopic string
	tapeTopic string
	publish   Publisher

	// Last known top of book; deltas only carry changed sides.
	book domain.MarketSnapshot
}

// NewPublicWorker factory
func NewPublicWorker(url, symbol string, publish Publisher, observer ConnectionObserver) *PublicWorker {
	w := &PublicWorker{
		symbol:    symbol,
		bookTopic: "orderbook.1." + symbol,
		tapeTopic: "publicTrade." + symbol,
		publish:   publish,
	}
	w.stream = &stream{
		name:     "public",
		url:      url,
		observer: observer,
	}
	w.stream.onOpen = w.subscribe
	w.stream.onData = w.handleData
	return w
}

func (w *PublicWorker) subscribe() error {
	return w.writeJSON(wsRequest{
		Op:   "subscribe",
		Args: []interface{}{w.bookTopic, w.tapeTopic},
	})
}

func (w *PublicWorker) handleData(ctx context.Context, msg wsMessage) {
	switch msg.Topic {
	case w.bookTopic:
		w.handleBook(ctx, msg)
	case w.tapeTopic:
		w.handleTrades(ctx, msg)
	}
}

func (w *PublicWorker) handleBook(ctx context.Context, msg wsMessage) {
	var data orderbookData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		slog.Debug("Bybit orderbook parse error", slog.Any("error", err))
		w.recordError()
		return
	}

	if msg.Type == "snapshot" {
		w.book = domain.MarketSnapshot{}
	}
	if len(data.Bids) > 0 {
		w.book.BestBid, w.book.BidSize = parseLevel(data.Bids[0])
	}
	if len(data.Asks) > 0 {
		w.book.BestAsk, w.book.AskSize = parseLevel(data.Asks[0])
	}
	if w.book.BestBid <= 0 || w.book.BestAsk <= 0 {
		return
	}

	ev := event.AcquireBookUpdateEvent()
	ev.Ts = tsOrNow(msg.Ts)
	ev.Symbol = w.symbol
	ev.Snapshot = w.book
	if err := w.publish(ctx, ev); err != nil {
		event.ReleaseBookUpdateEvent(ev)
	}
}

// parseLevel reads [price, size]. A zero size removes the level.
func parseLevel(level [2]string) (price, size float64) {
	p, ok1 := parseNumber(level[0])
	s, ok2 := parseNumber(level[1])
	if !ok1 || !ok2 || s <= 0 {
		return 0, 0
	}
	return p, s
}

func (w *PublicWorker) handleTrades(ctx context.Context, msg wsMessage) {
	var data []tradeData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		slog.Debug("Bybit trade parse error", slog.Any("error", err))
		w.recordError()
		return
	}

	trades := make([]domain.Trade, 0, len(data))
	for _, d := range data {
		if d.Symbol != "" && d.Symbol != w.symbol {
			continue
		}
		price, ok1 := parseNumber(d.Price)
		qty, ok2 := parseNumber(d.Size)
		if !ok1 || !ok2 {
			continue
		}
		ts := d.Time
		if ts == 0 {
			ts = msg.Ts
		}
		trades = append(trades, domain.Trade{
			Side:  domain.ParseSide(d.Side),
			Price: price,
			Qty:   qty,
			Time:  msTime(ts),
		})
	}
	if len(trades) == 0 {
		return
	}

	w.publish(ctx, &event.TradesEvent{
		BaseEvent: event.BaseEvent{Ts: tsOrNow(msg.Ts)},
		Symbol:    w.symbol,
		Trades:    trades,
	})
}

func tsOrNow(ms int64) time.Time {
	if t := msTime(ms); !t.IsZero() {
		return t
	}
	return time.Now()
}
