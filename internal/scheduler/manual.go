package scheduler

import (
	"sync"
	"time"
)

// Manual is a Scheduler on a virtual clock. Nothing runs until Advance.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*manualTask
}

type manualTask struct {
	m        *Manual
	interval time.Duration
	next     time.Duration
	fn       func()
	stopped  bool
}

// NewManual returns a Manual clock at zero.
func NewManual() *Manual {
	return &Manual{}
}

// Every schedules fn first at now+interval. Non-positive intervals are
// treated as one nanosecond.
func (m *Manual) Every(interval time.Duration, fn func()) Task {
	if interval <= 0 {
		interval = time.Nanosecond
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTask{m: m, interval: interval, next: m.now + interval, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance moves the clock forward by d, running every task that falls due
// in deadline order on the calling goroutine. Tasks due at the same instant
// run in registration order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var due *manualTask
		for _, t := range m.tasks {
			if t.stopped || t.next > target {
				continue
			}
			if due == nil || t.next < due.next {
				due = t
			}
		}
		if due == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = due.next
		due.next += due.interval
		fn := due.fn
		m.mu.Unlock()

		fn()
	}
}

// Now reports the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending reports how many tasks are still scheduled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (t *manualTask) Stop() {
	t.m.mu.Lock()
	t.stopped = true
	t.m.mu.Unlock()
}
