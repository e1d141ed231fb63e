package domain

import (
	"context"
	"time"
)

// Exchange is the order-entry capability the quoting engine needs.
// Implementations must be safe for concurrent use.
type Exchange interface {
	PlaceLimit(ctx context.Context, order LimitOrder) (PlaceResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAll(ctx context.Context) error
}

// InstrumentSource loads static instrument metadata before the engine starts.
type InstrumentSource interface {
	FetchInstrument(ctx context.Context) (Instrument, error)
}

// ExchangeWorker defines the interface for exchange WebSocket connectors
type ExchangeWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// LogKind classifies discrete engine events for the telemetry sink.
type LogKind string

const (
	LogPlaceAttempt LogKind = "place_attempt"
	LogPlaced       LogKind = "placed"
	LogPlaceFailed  LogKind = "place_failed"
	LogCancel       LogKind = "cancel"
	LogCancelFailed LogKind = "cancel_failed"
	LogStatus       LogKind = "status"
)

// LogEntry is one discrete engine event.
type LogEntry struct {
	Kind    LogKind     `json:"kind"`
	Symbol  string      `json:"symbol"`
	OrderID string      `json:"order_id,omitempty"`
	Side    Side        `json:"side,omitempty"`
	Price   float64     `json:"price,omitempty"`
	Qty     float64     `json:"qty,omitempty"`
	Status  OrderStatus `json:"status,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Error   string      `json:"error,omitempty"`
	Time    time.Time   `json:"ts"`
}

// Fill is an executed order as reported to telemetry.
type Fill struct {
	Symbol  string    `json:"symbol"`
	OrderID string    `json:"order_id"`
	Side    Side      `json:"side"`
	Qty     float64   `json:"qty"`
	Price   float64   `json:"price"`
	Fee     float64   `json:"fee"`
	PnL     float64   `json:"pnl"`
	Time    time.Time `json:"ts"`
}

// TelemetrySink receives engine events. Implementations must not block the
// caller for long and must be safe for concurrent use.
type TelemetrySink interface {
	RecordLog(entry LogEntry)
	RecordFill(fill Fill)
}

// MultiSink fans out to several sinks in order.
type MultiSink []TelemetrySink

func (m MultiSink) RecordLog(entry LogEntry) {
	for _, s := range m {
		s.RecordLog(entry)
	}
}

func (m MultiSink) RecordFill(fill Fill) {
	for _, s := range m {
		s.RecordFill(fill)
	}
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordLog(LogEntry) {}
func (NopSink) RecordFill(Fill)    {}
