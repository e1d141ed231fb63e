package order

import (
	"testing"
	"time"

	"crypto_scalper/internal/domain"
)

type fakeTask struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTask) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

type fakeScheduler struct {
	tasks []*fakeTask
	last  time.Duration
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Task {
	s.last = d
	t := &fakeTask{f: f}
	s.tasks = append(s.tasks, t)
	return t
}

// fire runs a task even when stopped, simulating a timer that already
// triggered before Stop was called.
func (t *fakeTask) fire() {
	t.fired = true
	t.f()
}

type expiry struct {
	id  string
	gen uint64
}

func newTestManager() (*Manager, *fakeScheduler, *[]expiry) {
	sched := &fakeScheduler{}
	var fired []expiry
	m := NewManager(2500*time.Millisecond, sched, func(id string, gen uint64) {
		fired = append(fired, expiry{id, gen})
	})
	return m, sched, &fired
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManager_RegisterSchedulesTTL(t *testing.T) {
	m, sched, _ := newTestManager()

	m.BeginPlacement()
	if m.Count() != 1 {
		t.Fatalf("pending placement should count, got %d", m.Count())
	}
	m.EndPlacement()
	if !m.Register("A", domain.SideBuy, 100.5, t0) {
		t.Fatal("Register should accept a fresh id")
	}

	if m.Count() != 1 || m.Pending() != 0 {
		t.Errorf("Count = %d, Pending = %d", m.Count(), m.Pending())
	}
	if len(sched.tasks) != 1 || sched.last != 2500*time.Millisecond {
		t.Errorf("expected one task at 2.5s, got %d at %v", len(sched.tasks), sched.last)
	}
	o, ok := m.Get("A")
	if !ok || o.Side != domain.SideBuy || o.Price != 100.5 || !o.PlacedAt.Equal(t0) {
		t.Errorf("Get(A) = %+v, %v", o, ok)
	}
}

func TestManager_RegisterRejects(t *testing.T) {
	m, sched, _ := newTestManager()

	if m.Register("", domain.SideBuy, 1, t0) {
		t.Error("empty id must not open an order")
	}
	m.Register("A", domain.SideBuy, 1, t0)
	if m.Register("A", domain.SideSell, 2, t0) {
		t.Error("an id may be open only once")
	}

	// A fill overtaking the placement ack.
	m.OnExternalStatus("B", domain.OrderStatusFilled)
	if m.Register("B", domain.SideSell, 2, t0) {
		t.Error("late ack for a finished order must be refused")
	}
	if len(sched.tasks) != 1 {
		t.Errorf("only one task should be scheduled, got %d", len(sched.tasks))
	}
}

func TestManager_TTLExpiry(t *testing.T) {
	m, sched, fired := newTestManager()
	m.Register("A", domain.SideBuy, 100, t0)

	sched.tasks[0].fire()
	if len(*fired) != 1 || (*fired)[0].id != "A" {
		t.Fatalf("expiry callback = %+v", *fired)
	}

	o, ok := m.Expire((*fired)[0].id, (*fired)[0].gen)
	if !ok || o.ID != "A" {
		t.Fatalf("Expire = %+v, %v", o, ok)
	}
	if m.Count() != 0 {
		t.Errorf("order should be gone, Count = %d", m.Count())
	}

	// Exchange confirms the cancel afterwards.
	r := m.OnExternalStatus("A", domain.OrderStatusCancelled)
	if !r.Known || !r.First || r.Removed || r.Duplicate {
		t.Errorf("cancel confirmation = %+v", r)
	}
	// And repeats it.
	r = m.OnExternalStatus("A", domain.OrderStatusCancelled)
	if !r.Duplicate {
		t.Errorf("repeat should be a duplicate, got %+v", r)
	}
}

func TestManager_TerminalStatusInvalidatesTimer(t *testing.T) {
	m, sched, fired := newTestManager()
	m.Register("A", domain.SideBuy, 100, t0)

	r := m.OnExternalStatus("A", domain.OrderStatusFilled)
	if !r.Removed || !r.First || r.Order.ID != "A" {
		t.Fatalf("fill = %+v", r)
	}
	if !sched.tasks[0].stopped {
		t.Error("timer should be stopped on removal")
	}

	// The timer raced and fired anyway: the expiry must be ignored.
	sched.tasks[0].fire()
	if len(*fired) != 1 {
		t.Fatalf("expected one raced firing, got %d", len(*fired))
	}
	if _, ok := m.Expire((*fired)[0].id, (*fired)[0].gen); ok {
		t.Error("stale expiry must not cancel anything")
	}
}

func TestManager_StaleGenerationIgnored(t *testing.T) {
	m, sched, _ := newTestManager()
	m.Register("A", domain.SideBuy, 100, t0)
	m.OnExternalStatus("A", domain.OrderStatusCancelled)

	// Expire with the first generation after the order is gone.
	if _, ok := m.Expire("A", 1); ok {
		t.Error("expiry for removed order must be ignored")
	}
	if _, ok := m.Expire("missing", 99); ok {
		t.Error("expiry for unknown order must be ignored")
	}
	if len(sched.tasks) != 1 {
		t.Errorf("tasks = %d", len(sched.tasks))
	}
}

func TestManager_OnExternalStatus(t *testing.T) {
	tests := []struct {
		name   string
		status domain.OrderStatus
		want   Reconciliation
	}{
		{"new keeps order", domain.OrderStatusNew, Reconciliation{Known: true}},
		{"partial keeps order", domain.OrderStatusPartiallyFilled, Reconciliation{Known: true}},
		{"filled removes", domain.OrderStatusFilled, Reconciliation{Known: true, Removed: true, First: true}},
		{"cancelled removes", domain.OrderStatusCancelled, Reconciliation{Known: true, Removed: true, First: true}},
		{"rejected removes", domain.OrderStatusRejected, Reconciliation{Known: true, Removed: true, First: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newTestManager()
			m.Register("A", domain.SideSell, 101, t0)

			got := m.OnExternalStatus("A", tt.status)
			got.Order = domain.OpenOrder{}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			_, open := m.Get("A")
			if open == tt.want.Removed {
				t.Errorf("open = %v after %s", open, tt.status)
			}
		})
	}
}

func TestManager_DuplicateTerminalIsNoop(t *testing.T) {
	m, _, _ := newTestManager()
	m.Register("A", domain.SideBuy, 100, t0)
	m.Register("B", domain.SideSell, 101, t0)

	m.OnExternalStatus("A", domain.OrderStatusFilled)
	r := m.OnExternalStatus("A", domain.OrderStatusFilled)
	if !r.Duplicate || r.First || r.Removed {
		t.Errorf("duplicate = %+v", r)
	}
	if m.Count() != 1 {
		t.Errorf("B should stay open, Count = %d", m.Count())
	}
}

func TestManager_UnknownTerminal(t *testing.T) {
	m, _, _ := newTestManager()

	r := m.OnExternalStatus("X", domain.OrderStatusFilled)
	if r.Known || !r.First {
		t.Errorf("unknown fill = %+v", r)
	}
	if r := m.OnExternalStatus("X", domain.OrderStatusNew); r.Known {
		t.Errorf("unknown non-terminal = %+v", r)
	}
}

func TestManager_CancelAll(t *testing.T) {
	m, sched, _ := newTestManager()
	m.Register("B", domain.SideSell, 101, t0.Add(time.Second))
	m.Register("A", domain.SideBuy, 100, t0)

	orders := m.CancelAll()
	if len(orders) != 2 || orders[0].ID != "A" || orders[1].ID != "B" {
		t.Fatalf("CancelAll = %+v", orders)
	}
	for i, task := range sched.tasks {
		if !task.stopped {
			t.Errorf("task %d not stopped", i)
		}
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d", m.Count())
	}
}

func TestManager_EndPlacementFloor(t *testing.T) {
	m, _, _ := newTestManager()
	m.EndPlacement()
	if m.Pending() != 0 {
		t.Errorf("Pending = %d", m.Pending())
	}
}

func TestTimerScheduler(t *testing.T) {
	done := make(chan struct{})
	TimerScheduler{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	task := TimerScheduler{}.AfterFunc(time.Hour, func() { t.Error("should not fire") })
	if !task.Stop() {
		t.Error("Stop should report an active timer")
	}
}
