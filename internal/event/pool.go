package event

import (
	"sync"
	"time"

	"crypto_scalper/internal/domain"
)

// bookUpdatePool recycles book updates, the highest-rate event on the feed.
//
// Usage:
//
//	ev := AcquireBookUpdateEvent()
//	ev.Snapshot = snap
//	inbox <- ev
//	// the decision loop calls ReleaseBookUpdateEvent(ev) after processing
var bookUpdatePool = sync.Pool{
	New: func() interface{} {
		return &BookUpdateEvent{}
	},
}

// AcquireBookUpdateEvent gets a BookUpdateEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireBookUpdateEvent() *BookUpdateEvent {
	return bookUpdatePool.Get().(*BookUpdateEvent)
}

// ReleaseBookUpdateEvent returns a BookUpdateEvent to the pool.
func ReleaseBookUpdateEvent(ev *BookUpdateEvent) {
	if ev == nil {
		return
	}
	ev.Ts = time.Time{}
	ev.Symbol = ""
	ev.Snapshot = domain.MarketSnapshot{}

	bookUpdatePool.Put(ev)
}

// Warmup pre-allocates events to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 256

	evs := make([]*BookUpdateEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		evs = append(evs, AcquireBookUpdateEvent())
	}
	for _, ev := range evs {
		ReleaseBookUpdateEvent(ev)
	}
}
