package telemetry

import (
	"sync"
	"time"

	"crypto_scalper/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	maxRecentFills = 50
	maxRecentLogs  = 500
)

// Message types pushed to dashboard clients.
const (
	MessageStats = "stats"
	MessageLog   = "log"
	MessageFill  = "fill"
)

// Message is the envelope of every WebSocket push.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Broadcaster delivers messages to connected clients without blocking.
type Broadcaster interface {
	Broadcast(msg Message)
}

// StatsSnapshot is the aggregated fill statistics of one symbol.
type StatsSnapshot struct {
	Symbol      string        `json:"symbol"`
	Trades      int           `json:"trades"`
	FilledQty   float64       `json:"filled_qty"`
	RealizedPnL float64       `json:"realized_pnl"`
	Fees        float64       `json:"fees"`
	NetPnL      float64       `json:"net_pnl"`
	LastFills   []domain.Fill `json:"last_fills"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Stats aggregates fills and keeps the most recent engine logs.
type Stats struct {
	mu          sync.RWMutex
	symbol      string
	trades      int
	filledQty   decimal.Decimal
	realizedPnL decimal.Decimal
	fees        decimal.Decimal
	fills       []domain.Fill // newest last
	logs        []domain.LogEntry
	logHead     int // next write position once the ring is full
	updatedAt   time.Time
	out         Broadcaster
}

// NewStats creates a Stats for one symbol. out may be nil.
func NewStats(symbol string, out Broadcaster) *Stats {
	return &Stats{
		symbol:      symbol,
		filledQty:   decimal.Zero,
		realizedPnL: decimal.Zero,
		fees:        decimal.Zero,
		logs:        make([]domain.LogEntry, 0, maxRecentLogs),
		out:         out,
	}
}

var _ domain.TelemetrySink = (*Stats)(nil)

// RecordFill updates the totals and pushes the fill and a fresh snapshot.
func (s *Stats) RecordFill(fill domain.Fill) {
	s.mu.Lock()
	s.trades++
	s.filledQty = s.filledQty.Add(decimal.NewFromFloat(fill.Qty))
	s.realizedPnL = s.realizedPnL.Add(decimal.NewFromFloat(fill.PnL))
	s.fees = s.fees.Add(decimal.NewFromFloat(fill.Fee))
	s.fills = append(s.fills, fill)
	if len(s.fills) > maxRecentFills {
		s.fills = s.fills[len(s.fills)-maxRecentFills:]
	}
	s.updatedAt = fill.Time
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.out != nil {
		s.out.Broadcast(Message{Type: MessageFill, Payload: fill})
		s.out.Broadcast(Message{Type: MessageStats, Payload: snap})
	}
}

// RecordLog stores the entry in the ring and pushes it.
func (s *Stats) RecordLog(entry domain.LogEntry) {
	s.mu.Lock()
	if len(s.logs) < maxRecentLogs {
		s.logs = append(s.logs, entry)
	} else {
		s.logs[s.logHead] = entry
		s.logHead = (s.logHead + 1) % maxRecentLogs
	}
	s.mu.Unlock()

	if s.out != nil {
		s.out.Broadcast(Message{Type: MessageLog, Payload: entry})
	}
}

// Snapshot returns the current totals. LastFills is newest first.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Must be called with lock held
func (s *Stats) snapshotLocked() StatsSnapshot {
	last := make([]domain.Fill, len(s.fills))
	for i, f := range s.fills {
		last[len(s.fills)-1-i] = f
	}
	return StatsSnapshot{
		Symbol:      s.symbol,
		Trades:      s.trades,
		FilledQty:   s.filledQty.InexactFloat64(),
		RealizedPnL: s.realizedPnL.InexactFloat64(),
		Fees:        s.fees.InexactFloat64(),
		NetPnL:      s.realizedPnL.Sub(s.fees).InexactFloat64(),
		LastFills:   last,
		UpdatedAt:   s.updatedAt,
	}
}

// RecentLogs returns the retained entries, oldest first.
func (s *Stats) RecentLogs() []domain.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LogEntry, 0, len(s.logs))
	out = append(out, s.logs[s.logHead:]...)
	out = append(out, s.logs[:s.logHead]...)
	return out
}

// Greeting is what a newly connected client receives: the current stats
// followed by the retained logs.
func (s *Stats) Greeting() []Message {
	logs := s.RecentLogs()
	msgs := make([]Message, 0, len(logs)+1)
	msgs = append(msgs, Message{Type: MessageStats, Payload: s.Snapshot()})
	for _, e := range logs {
		msgs = append(msgs, Message{Type: MessageLog, Payload: e})
	}
	return msgs
}
