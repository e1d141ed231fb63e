package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"crypto_scalper/internal/domain"
	"crypto_scalper/internal/event"
	"crypto_scalper/internal/market"
	"crypto_scalper/internal/order"
	"crypto_scalper/internal/risk"
	"crypto_scalper/internal/strategy"

	"github.com/shopspring/decimal"
)

const defaultInboxSize = 1024

// Options wires the collaborators of a Sequencer. Zero values get defaults.
type Options struct {
	Exchange  domain.Exchange
	Sink      domain.TelemetrySink
	Metrics   Metrics
	Strategy  strategy.Strategy
	Scheduler order.Scheduler
	Clock     func() time.Time
	InboxSize int
	DumpPath  string
}

// Sequencer is the single-threaded decision loop for one instrument.
// Market data, order status and TTL expiries are all serialized through its
// inbox; only exchange calls run on other goroutines.
type Sequencer struct {
	cfg  domain.QuotingConfig
	inst domain.Instrument
	qty  float64

	inbox chan event.Event
	done  chan struct{}
	once  sync.Once
	now   func() time.Time

	exchange domain.Exchange
	sink     domain.TelemetrySink
	metrics  Metrics
	strategy strategy.Strategy
	dumpPath string

	agg      *market.Aggregator
	orders   *order.Manager
	governor *risk.Governor
	position *domain.Position

	book      domain.MarketSnapshot
	processed uint64

	inflight sync.WaitGroup
	status   atomic.Pointer[Status]
}

// NewSequencer creates a sequencer. cfg and inst must already be validated.
func NewSequencer(cfg domain.QuotingConfig, inst domain.Instrument, opts Options) *Sequencer {
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	if opts.Sink == nil {
		opts.Sink = domain.NopSink{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Strategy == nil {
		opts.Strategy = strategy.NewScalper(cfg, inst)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.DumpPath == "" {
		opts.DumpPath = "panic_dump.json"
	}

	s := &Sequencer{
		cfg:      cfg,
		inst:     inst,
		qty:      inst.RoundQty(cfg.OrderQty),
		inbox:    make(chan event.Event, opts.InboxSize),
		done:     make(chan struct{}),
		now:      opts.Clock,
		exchange: opts.Exchange,
		sink:     opts.Sink,
		metrics:  opts.Metrics,
		strategy: opts.Strategy,
		dumpPath: opts.DumpPath,
		agg:      market.NewAggregator(cfg, inst.Tick()),
		governor: risk.NewGovernor(cfg),
		position: domain.NewPosition(cfg.Symbol),
	}
	s.orders = order.NewManager(cfg.CancelAfter(), opts.Scheduler, s.onOrderExpired)
	s.publish(s.now())
	return s
}

// Inbox returns the event channel. External workers send events here.
func (s *Sequencer) Inbox() chan<- event.Event {
	return s.inbox
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started", slog.String("symbol", s.cfg.Symbol), slog.String("config", s.cfg.String()))
	defer s.once.Do(func() { close(s.done) })

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState(s.dumpPath)
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...")
			return
		case ev := <-s.inbox:
			s.processEvent(ctx, ev)
		}
	}
}

// Shutdown waits for in-flight exchange calls, forgets every open order and
// asks the exchange to cancel everything. Call only after Run has returned.
func (s *Sequencer) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.done) })
	s.inflight.Wait()

	now := s.now()
	dropped := s.orders.CancelAll()
	for _, o := range dropped {
		s.sink.RecordLog(domain.LogEntry{
			Kind:    domain.LogCancel,
			Symbol:  s.cfg.Symbol,
			OrderID: o.ID,
			Side:    o.Side,
			Price:   o.Price,
			Reason:  "shutdown",
			Time:    now,
		})
	}
	s.publish(now)
	if s.exchange == nil {
		return nil
	}
	slog.Info("Cancelling all orders", slog.String("symbol", s.cfg.Symbol), slog.Int("tracked", len(dropped)))
	if err := s.exchange.CancelAll(ctx); err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	return nil
}

// GetStatus returns the latest published status.
func (s *Sequencer) GetStatus() Status {
	return *s.status.Load()
}

func (s *Sequencer) processEvent(ctx context.Context, ev event.Event) {
	now := s.now()

	switch e := ev.(type) {
	case *event.BookUpdateEvent:
		s.handleBookUpdate(ctx, e, now)
	case *event.TradesEvent:
		s.handleTrades(e, now)
	case *event.OrderStatusEvent:
		s.handleOrderStatus(e, now)
	case *placementResult:
		s.handlePlacementResult(e, now)
	case *orderExpired:
		s.handleOrderExpired(ctx, e, now)
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}

	s.processed++
	s.publish(now)
}

func (s *Sequencer) handleBookUpdate(ctx context.Context, e *event.BookUpdateEvent, now time.Time) {
	symbol, snap := e.Symbol, e.Snapshot
	event.ReleaseBookUpdateEvent(e)

	if !s.ours(symbol) || !snap.Valid() {
		return
	}
	s.book = snap

	actions := s.strategy.OnBookUpdate(snap, strategy.Signals{
		Volatility:     s.agg.Volatility(),
		AggressionBias: s.agg.AggressionBias(),
	})
	for _, a := range actions {
		s.quote(ctx, a, now)
	}
}

func (s *Sequencer) handleTrades(e *event.TradesEvent, now time.Time) {
	if !s.ours(e.Symbol) || len(e.Trades) == 0 {
		return
	}
	s.agg.IngestTrades(e.Trades, now)
}

// quote gates one action through the governor and starts an async placement.
func (s *Sequencer) quote(ctx context.Context, a strategy.Action, now time.Time) {
	if s.exchange == nil {
		return
	}
	if ok, denial := s.governor.Admit(s.orders.Count(), now); !ok {
		s.metrics.ObserveDenial(string(denial))
		return
	}

	req := domain.LimitOrder{
		Symbol:      s.cfg.Symbol,
		Side:        a.Side,
		Price:       s.inst.RoundPrice(a.Price),
		Qty:         s.qty,
		TimeInForce: s.cfg.TIF(),
	}
	s.orders.BeginPlacement()
	s.sink.RecordLog(domain.LogEntry{
		Kind:   domain.LogPlaceAttempt,
		Symbol: req.Symbol,
		Side:   req.Side,
		Price:  req.Price,
		Qty:    req.Qty,
		Time:   now,
	})

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		res, err := s.exchange.PlaceLimit(ctx, req)
		s.post(&placementResult{
			BaseEvent: event.BaseEvent{Ts: s.now()},
			order:     req,
			orderID:   res.OrderID,
			err:       err,
		})
	}()
}

func (s *Sequencer) handlePlacementResult(e *placementResult, now time.Time) {
	s.orders.EndPlacement()
	req := e.order

	err := e.err
	if err == nil && e.orderID == "" {
		err = domain.ErrNoOrderID
	}
	if err != nil {
		slog.Warn("Order placement failed",
			slog.String("symbol", req.Symbol),
			slog.String("side", string(req.Side)),
			slog.Float64("price", req.Price),
			slog.Any("error", err),
		)
		s.governor.StartCooldown(now)
		s.sink.RecordLog(domain.LogEntry{
			Kind:   domain.LogPlaceFailed,
			Symbol: req.Symbol,
			Side:   req.Side,
			Price:  req.Price,
			Qty:    req.Qty,
			Error:  err.Error(),
			Time:   now,
		})
		return
	}

	if !s.orders.Register(e.orderID, req.Side, req.Price, now) {
		// A terminal status overtook the acknowledgement.
		slog.Debug("Placement acknowledged for finished order", slog.String("order_id", e.orderID))
		return
	}
	s.sink.RecordLog(domain.LogEntry{
		Kind:    domain.LogPlaced,
		Symbol:  req.Symbol,
		OrderID: e.orderID,
		Side:    req.Side,
		Price:   req.Price,
		Qty:     req.Qty,
		Time:    now,
	})
}

func (s *Sequencer) handleOrderExpired(ctx context.Context, e *orderExpired, now time.Time) {
	o, ok := s.orders.Expire(e.orderID, e.gen)
	if !ok {
		return
	}
	s.sink.RecordLog(domain.LogEntry{
		Kind:    domain.LogCancel,
		Symbol:  s.cfg.Symbol,
		OrderID: o.ID,
		Side:    o.Side,
		Price:   o.Price,
		Reason:  "ttl",
		Time:    now,
	})
	s.cancel(ctx, o)
}

// cancel is fire-and-forget; failures are expected when the order already
// filled and are only reported.
func (s *Sequencer) cancel(ctx context.Context, o domain.OpenOrder) {
	if s.exchange == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.exchange.CancelOrder(ctx, o.ID); err != nil {
			slog.Warn("Order cancel failed", slog.String("order_id", o.ID), slog.Any("error", err))
			s.sink.RecordLog(domain.LogEntry{
				Kind:    domain.LogCancelFailed,
				Symbol:  s.cfg.Symbol,
				OrderID: o.ID,
				Side:    o.Side,
				Price:   o.Price,
				Error:   err.Error(),
				Time:    s.now(),
			})
		}
	}()
}

func (s *Sequencer) handleOrderStatus(e *event.OrderStatusEvent, now time.Time) {
	if !s.ours(e.Symbol) {
		return
	}
	u := e.Update
	r := s.orders.OnExternalStatus(u.OrderID, u.Status)
	if r.Duplicate || (!r.Known && !u.Status.IsTerminal()) {
		return
	}
	// 모르는 id: 우리 태그가 있거나 주문 응답 대기 중일 때만 반영
	if !r.Known && !u.EngineTagged() && s.orders.Pending() == 0 {
		slog.Debug("Ignoring foreign order",
			slog.String("order_id", u.OrderID),
			slog.String("link_id", u.LinkID),
			slog.String("status", string(u.Status)))
		return
	}

	side := u.Side
	if !side.Valid() {
		side = r.Order.Side
	}
	s.sink.RecordLog(domain.LogEntry{
		Kind:    domain.LogStatus,
		Symbol:  s.cfg.Symbol,
		OrderID: u.OrderID,
		Side:    side,
		Price:   u.Price,
		Qty:     u.ExecQty,
		Status:  u.Status,
		Time:    now,
	})

	if r.First && u.ExecQty > 0 {
		s.recordFill(u, side, now)
	}
}

func (s *Sequencer) recordFill(u domain.OrderUpdate, side domain.Side, now time.Time) {
	price := u.AvgPrice
	if price <= 0 {
		price = u.Price
	}
	pnl := s.position.Apply(side,
		decimal.NewFromFloat(u.ExecQty),
		decimal.NewFromFloat(price),
		decimal.NewFromFloat(u.ExecFee),
	)
	s.position.VerifyInvariant()

	s.sink.RecordFill(domain.Fill{
		Symbol:  s.cfg.Symbol,
		OrderID: u.OrderID,
		Side:    side,
		Qty:     u.ExecQty,
		Price:   price,
		Fee:     u.ExecFee,
		PnL:     pnl.InexactFloat64(),
		Time:    now,
	})
}

// onOrderExpired runs on a timer goroutine and only hands off to the loop.
func (s *Sequencer) onOrderExpired(orderID string, gen uint64) {
	s.post(&orderExpired{
		BaseEvent: event.BaseEvent{Ts: s.now()},
		orderID:   orderID,
		gen:       gen,
	})
}

// post delivers an internal event unless the loop has stopped.
func (s *Sequencer) post(ev event.Event) {
	select {
	case s.inbox <- ev:
	case <-s.done:
	}
}

func (s *Sequencer) ours(symbol string) bool {
	return symbol == "" || symbol == s.cfg.Symbol
}

func (s *Sequencer) publish(now time.Time) {
	st := s.snapshot(now)
	s.status.Store(&st)
	s.metrics.SetOpenOrders(len(st.OpenOrders))
	s.metrics.SetSignals(st.Volatility, st.AggressionBias, st.Breakout.MomentumTicks)
}

func (s *Sequencer) snapshot(now time.Time) Status {
	st := Status{
		Symbol:           s.cfg.Symbol,
		Book:             s.book,
		Volatility:       s.agg.Volatility(),
		AggressionBias:   s.agg.AggressionBias(),
		Breakout:         s.agg.Breakout(),
		OpenOrders:       s.orders.Open(),
		PendingOrders:    s.orders.Pending(),
		RecentPlacements: s.governor.RecentPlacements(now),
		CooldownUntil:    s.governor.CooldownUntil(),
		Position:         s.position.Snapshot(),
		Processed:        s.processed,
		UpdatedAt:        now,
	}
	if d, ok := s.strategy.(interface{ LastDecision() strategy.Decision }); ok {
		st.Decision = d.LastDecision()
	}
	return st
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		Status
		Config     domain.QuotingConfig `json:"config"`
		Instrument domain.Instrument    `json:"instrument"`
	}{
		Status:     s.snapshot(s.now()),
		Config:     s.cfg,
		Instrument: s.inst,
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}

// IsStopped reports whether the loop has exited.
func (s *Sequencer) IsStopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

var errLoopStopped = errors.New("sequencer stopped")

// Submit delivers an event from a producer, blocking until the loop accepts
// it, the context ends, or the loop stops. Order between calls from one
// producer is preserved.
func (s *Sequencer) Submit(ctx context.Context, ev event.Event) error {
	select {
	case <-s.done:
		return errLoopStopped
	default:
	}
	select {
	case s.inbox <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errLoopStopped
	}
}
