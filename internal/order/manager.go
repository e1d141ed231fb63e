package order

import (
	"sort"
	"time"

	"crypto_scalper/internal/domain"

	lru "github.com/hashicorp/golang-lru/v2"
)

// StatusExpired marks orders the manager removed on TTL. It never comes from
// the exchange.
const StatusExpired domain.OrderStatus = "Expired"

const closedMemory = 1024

// ExpireFunc is invoked from the timer goroutine when an order's TTL elapses.
// It must only hand the expiry over to the decision loop.
type ExpireFunc func(orderID string, gen uint64)

type entry struct {
	order domain.OpenOrder
	task  *ttlTask
}

// Reconciliation describes what a status event did to local state.
type Reconciliation struct {
	Order     domain.OpenOrder
	Known     bool // the id was open, or was closed by us earlier
	Removed   bool // the order left the open set because of this event
	First     bool // first terminal exchange status seen for this id
	Duplicate bool // a terminal status was already recorded for this id
}

// Manager owns the set of open bot orders and their TTL tasks.
// Not safe for concurrent use; owned by the decision loop.
type Manager struct {
	ttl      time.Duration
	sched    Scheduler
	onExpire ExpireFunc

	open    map[string]*entry
	pending int
	nextGen uint64

	// Recently closed ids and why, to keep terminal handling idempotent and
	// to refuse late placement acks for orders that already finished.
	closed *lru.Cache[string, domain.OrderStatus]
}

// NewManager creates a lifecycle manager with the given order TTL.
func NewManager(ttl time.Duration, sched Scheduler, onExpire ExpireFunc) *Manager {
	if sched == nil {
		sched = TimerScheduler{}
	}
	closed, err := lru.New[string, domain.OrderStatus](closedMemory)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	return &Manager{
		ttl:      ttl,
		sched:    sched,
		onExpire: onExpire,
		open:     make(map[string]*entry),
		closed:   closed,
	}
}

// BeginPlacement reserves a slot for an in-flight placement.
func (m *Manager) BeginPlacement() {
	m.pending++
}

// EndPlacement releases the slot reserved by BeginPlacement.
func (m *Manager) EndPlacement() {
	if m.pending > 0 {
		m.pending--
	}
}

// Count is the number of open orders plus in-flight placements.
func (m *Manager) Count() int {
	return len(m.open) + m.pending
}

// Pending is the number of in-flight placements.
func (m *Manager) Pending() int {
	return m.pending
}

// Register makes an acknowledged order Open and schedules its TTL task.
// It refuses empty ids, ids already open, and ids that already reached a
// terminal state (a fill can overtake the placement ack).
func (m *Manager) Register(id string, side domain.Side, price float64, now time.Time) bool {
	if id == "" {
		return false
	}
	if _, ok := m.open[id]; ok {
		return false
	}
	if m.closed.Contains(id) {
		return false
	}

	m.nextGen++
	gen := m.nextGen
	task := &ttlTask{gen: gen}
	task.handle = m.sched.AfterFunc(m.ttl, func() {
		if m.onExpire != nil {
			m.onExpire(id, gen)
		}
	})

	m.open[id] = &entry{
		order: domain.OpenOrder{ID: id, Side: side, Price: price, PlacedAt: now},
		task:  task,
	}
	return true
}

// Expire handles a TTL firing. It returns the order to cancel, or false when
// the firing is stale because the order was already removed.
func (m *Manager) Expire(id string, gen uint64) (domain.OpenOrder, bool) {
	e, ok := m.open[id]
	if !ok || e.task.gen != gen || e.task.done {
		return domain.OpenOrder{}, false
	}
	e.task.done = true
	m.remove(id, StatusExpired)
	return e.order, true
}

// OnExternalStatus reconciles an exchange status report. Non-terminal
// statuses leave state untouched. Repeating a terminal status is a no-op.
func (m *Manager) OnExternalStatus(id string, status domain.OrderStatus) Reconciliation {
	if id == "" {
		return Reconciliation{}
	}
	if !status.IsTerminal() {
		e, ok := m.open[id]
		if !ok {
			return Reconciliation{}
		}
		return Reconciliation{Order: e.order, Known: true}
	}

	if e, ok := m.open[id]; ok {
		e.task.invalidate()
		m.remove(id, status)
		return Reconciliation{Order: e.order, Known: true, Removed: true, First: true}
	}

	prev, seen := m.closed.Get(id)
	switch {
	case seen && prev.IsTerminal():
		return Reconciliation{Known: true, Duplicate: true}
	case seen:
		// We expired or cancelled it locally; this is the exchange's verdict.
		m.closed.Add(id, status)
		return Reconciliation{Known: true, First: true}
	default:
		m.closed.Add(id, status)
		return Reconciliation{First: true}
	}
}

// CancelAll removes every open order, invalidating its task, and returns them.
func (m *Manager) CancelAll() []domain.OpenOrder {
	orders := m.Open()
	for _, o := range orders {
		m.open[o.ID].task.invalidate()
		m.remove(o.ID, StatusExpired)
	}
	return orders
}

// Get returns an open order by id.
func (m *Manager) Get(id string) (domain.OpenOrder, bool) {
	e, ok := m.open[id]
	if !ok {
		return domain.OpenOrder{}, false
	}
	return e.order, true
}

// Open returns the open orders, oldest first.
func (m *Manager) Open() []domain.OpenOrder {
	orders := make([]domain.OpenOrder, 0, len(m.open))
	for _, e := range m.open {
		orders = append(orders, e.order)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].PlacedAt.Equal(orders[j].PlacedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].PlacedAt.Before(orders[j].PlacedAt)
	})
	return orders
}

func (m *Manager) remove(id string, status domain.OrderStatus) {
	delete(m.open, id)
	m.closed.Add(id, status)
}
