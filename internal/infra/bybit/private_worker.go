package bybit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"crypto_scalper/internal/domain"
	"crypto_scalper/internal/event"
)

// PrivateWorker streams order updates for the account. It authenticates on
// every (re)connect.
type PrivateWorker struct {
	*stream
	signer   *Signer
	category string
	symbol   string
	publish  Publisher
}

// NewPrivateWorker factory
func NewPrivateWorker(url string, signer *Signer, category, symbol string, publish Publisher, observer ConnectionObserver) *PrivateWorker {
	w := &PrivateWorker{
		signer:   signer,
		category: category,
		symbol:   symbol,
		publish:  publish,
	}
	w.stream = &stream{
		name:     "private",
		url:      url,
		observer: observer,
	}
	w.stream.onOpen = w.authenticate
	w.stream.onData = w.handleData
	return w
}

// authenticate sends auth then subscribes; the server processes them in order.
func (w *PrivateWorker) authenticate() error {
	if err := w.writeJSON(wsRequest{Op: "auth", Args: w.signer.WSAuthArgs(time.Now())}); err != nil {
		return err
	}
	return w.writeJSON(wsRequest{Op: "subscribe", Args: []interface{}{"order"}})
}

func (w *PrivateWorker) handleData(ctx context.Context, msg wsMessage) {
	if msg.Topic != "order" {
		return
	}
	var data []orderData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		slog.Debug("Bybit order parse error", slog.Any("error", err))
		w.recordError()
		return
	}

	for _, d := range data {
		update, ok := w.toUpdate(d)
		if !ok {
			continue
		}
		err := w.publish(ctx, &event.OrderStatusEvent{
			BaseEvent: event.BaseEvent{Ts: tsOrNow(msg.Ts)},
			Symbol:    w.symbol,
			Update:    update,
		})
		if err != nil {
			return
		}
	}
}

func (w *PrivateWorker) toUpdate(d orderData) (domain.OrderUpdate, bool) {
	if d.Symbol != w.symbol || (d.Category != "" && d.Category != w.category) {
		return domain.OrderUpdate{}, false
	}
	status, ok := mapOrderStatus(d.OrderStatus)
	if !ok || d.OrderID == "" {
		return domain.OrderUpdate{}, false
	}

	price, _ := parseNumber(d.Price)
	avg, _ := parseNumber(d.AvgPrice)
	qty, _ := parseNumber(d.CumExecQty)
	fee, _ := parseNumber(d.CumExecFee)
	updated, _ := strconv.ParseInt(d.UpdatedTime, 10, 64)

	return domain.OrderUpdate{
		OrderID:   d.OrderID,
		LinkID:    d.OrderLinkID,
		Status:    status,
		Side:      domain.ParseSide(d.Side),
		Price:     price,
		AvgPrice:  avg,
		ExecQty:   qty,
		ExecFee:   fee,
		UpdatedAt: msTime(updated),
	}, true
}

// mapOrderStatus folds Bybit's statuses into the lifecycle states.
func mapOrderStatus(s string) (domain.OrderStatus, bool) {
	switch s {
	case "Created", "New", "Untriggered", "Triggered":
		return domain.OrderStatusNew, true
	case "PartiallyFilled":
		return domain.OrderStatusPartiallyFilled, true
	case "Filled":
		return domain.OrderStatusFilled, true
	case "Cancelled", "PartiallyFilledCanceled", "Deactivated":
		return domain.OrderStatusCancelled, true
	case "Rejected":
		return domain.OrderStatusRejected, true
	default:
		return "", false
	}
}
