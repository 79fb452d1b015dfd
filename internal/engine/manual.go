package engine

import (
	"container/heap"
	"sync"
	"time"
)

// ManualScheduler is a Scheduler driven by an explicit clock. Tasks only run
// when AdvanceTo moves the clock past their deadline. It is used by tests and
// by offline simulation.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks taskHeap
	seq   uint64
	now   time.Time
}

// NewManualScheduler creates a ManualScheduler whose clock starts at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Schedule queues fn for time at.
func (m *ManualScheduler) Schedule(at time.Time, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	heap.Push(&m.tasks, task{at: at, seq: m.seq, fn: fn})
}

// Now returns the scheduler clock.
func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of queued tasks.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks.Len()
}

// AdvanceTo runs every task due at or before t in deadline order, moving the
// clock to each deadline before running it, and finally sets the clock to t.
// It returns the number of tasks run.
func (m *ManualScheduler) AdvanceTo(t time.Time) int {
	ran := 0
	for {
		m.mu.Lock()
		if m.tasks.Len() == 0 || m.tasks[0].at.After(t) {
			if t.After(m.now) {
				m.now = t
			}
			m.mu.Unlock()
			return ran
		}
		next := heap.Pop(&m.tasks).(task)
		if next.at.After(m.now) {
			m.now = next.at
		}
		m.mu.Unlock()

		next.fn()
		ran++
	}
}

// Advance moves the clock forward by d. See AdvanceTo.
func (m *ManualScheduler) Advance(d time.Duration) int {
	return m.AdvanceTo(m.Now().Add(d))
}
