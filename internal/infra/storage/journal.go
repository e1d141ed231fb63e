package storage

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"crypto_scalper/internal/domain"
)

// journalOp is one queued write.
type journalOp struct {
	log  *domain.LogEntry
	fill *domain.Fill
}

// Journal persists engine events off the hot path. Writes go through a
// bounded queue; when it is full the event is dropped and counted.
type Journal struct {
	store   *Storage
	queue   chan journalOp
	dropped atomic.Int64
	closed  atomic.Bool
	mu      sync.RWMutex
	wg      sync.WaitGroup
}

// NewJournal starts the writer goroutine.
func NewJournal(store *Storage, queueSize int) *Journal {
	if queueSize <= 0 {
		queueSize = 1024
	}
	j := &Journal{
		store: store,
		queue: make(chan journalOp, queueSize),
	}
	j.wg.Add(1)
	go j.writer()
	return j
}

var _ domain.TelemetrySink = (*Journal)(nil)

func (j *Journal) RecordLog(entry domain.LogEntry) {
	switch entry.Kind {
	case domain.LogPlaced, domain.LogCancel, domain.LogStatus:
	default:
		return
	}
	j.enqueue(journalOp{log: &entry})
}

func (j *Journal) RecordFill(fill domain.Fill) {
	j.enqueue(journalOp{fill: &fill})
}

func (j *Journal) enqueue(op journalOp) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed.Load() {
		return
	}
	select {
	case j.queue <- op:
	default:
		if n := j.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("Journal queue full, dropping event", slog.Int64("dropped", n))
		}
	}
}

// Dropped returns how many events were lost to a full queue.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Close flushes queued writes and stops the writer. The storage stays open.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed.Swap(true) {
		j.mu.Unlock()
		return
	}
	close(j.queue)
	j.mu.Unlock()
	j.wg.Wait()
}

func (j *Journal) writer() {
	defer j.wg.Done()
	for op := range j.queue {
		var err error
		switch {
		case op.fill != nil:
			err = j.writeFill(*op.fill)
		case op.log != nil:
			err = j.writeLog(*op.log)
		}
		if err != nil {
			slog.Error("Journal write failed", slog.Any("error", err))
		}
	}
}

func (j *Journal) writeLog(e domain.LogEntry) error {
	switch e.Kind {
	case domain.LogPlaced:
		return j.store.UpsertOrder(&domain.OrderRecord{
			OrderID:   e.OrderID,
			Symbol:    e.Symbol,
			Side:      string(e.Side),
			Price:     e.Price,
			Qty:       e.Qty,
			Status:    StatusOpen,
			PlacedAt:  e.Time,
			UpdatedAt: e.Time,
		})
	case domain.LogCancel:
		return j.store.CloseOrder(e.OrderID, e.Symbol, StatusExpired, e.Reason, e.Time)
	case domain.LogStatus:
		if !e.Status.IsTerminal() {
			return nil
		}
		return j.store.CloseOrder(e.OrderID, e.Symbol, string(e.Status), "", e.Time)
	}
	return nil
}

func (j *Journal) writeFill(f domain.Fill) error {
	return j.store.InsertFill(&domain.FillRecord{
		OrderID:  f.OrderID,
		Symbol:   f.Symbol,
		Side:     string(f.Side),
		Qty:      f.Qty,
		Price:    f.Price,
		Fee:      f.Fee,
		PnL:      f.PnL,
		FilledAt: f.Time,
	})
}
