package order

import "time"

// Task is a scheduled callback that can be stopped before it runs.
type Task interface {
	Stop() bool
}

// Scheduler runs f once after d on its own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

// TimerScheduler schedules with time.AfterFunc.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// ttlTask is the single scheduled cancellation owned by one open order.
// A task that has been invalidated never reaches the manager again: its
// generation no longer matches any live order.
type ttlTask struct {
	gen    uint64
	handle Task
	done   bool
}

func (t *ttlTask) invalidate() {
	if t.done {
		return
	}
	t.done = true
	t.handle.Stop()
}
