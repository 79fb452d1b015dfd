package engine

import (
	"container/heap"
	"sync"
	"time"
)

// Scheduler runs functions at a later time. Schedule must not block and must
// never run fn synchronously.
type Scheduler interface {
	Schedule(at time.Time, fn func())
}

type task struct {
	at  time.Time
	seq uint64
	fn  func()
}

// taskHeap orders tasks by deadline, then by scheduling order.
type taskHeap []task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = task{}
	*h = old[:n-1]
	return x
}

// TimerScheduler serves every delayed task from one goroutine and one timer,
// however many releases are in flight.
type TimerScheduler struct {
	mu     sync.Mutex
	tasks  taskHeap
	seq    uint64
	closed bool
	wake   chan struct{}
	stopCh chan struct{}
	done   chan struct{}
}

// NewScheduler creates a TimerScheduler and starts its goroutine.
// Call Close to stop it.
func NewScheduler() *TimerScheduler {
	s := &TimerScheduler{
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Schedule queues fn to run at or shortly after at. Tasks scheduled after
// Close are dropped.
func (s *TimerScheduler) Schedule(at time.Time, fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	heap.Push(&s.tasks, task{at: at, seq: s.seq, fn: fn})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of tasks that have not run yet.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks.Len()
}

// Close stops the scheduler. Pending tasks are discarded.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.tasks = nil
	s.mu.Unlock()

	close(s.stopCh)
	<-s.done
}

func (s *TimerScheduler) run() {
	defer close(s.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		due, wait := s.popDue(time.Now())
		for _, fn := range due {
			fn()
		}
		if len(due) > 0 {
			continue
		}

		var timerC <-chan time.Time
		if wait >= 0 {
			timer.Reset(wait)
			timerC = timer.C
		}

		select {
		case <-s.stopCh:
			return
		case <-s.wake:
		case <-timerC:
		}
		timer.Stop()
	}
}

// popDue removes every task due at now and returns them with the wait until
// the next deadline, or -1 when the queue is empty.
func (s *TimerScheduler) popDue(now time.Time) ([]func(), time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []func()
	for s.tasks.Len() > 0 && !now.Before(s.tasks[0].at) {
		due = append(due, heap.Pop(&s.tasks).(task).fn)
	}
	if s.tasks.Len() == 0 {
		return due, -1
	}
	return due, s.tasks[0].at.Sub(now)
}
