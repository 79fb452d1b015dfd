// Package sink provides consumers for engine note events.
package sink

import (
	"sync"

	"github.com/ayusman/handchord/internal/engine"
)

// Queue is an unbounded FIFO between the engine and slower sinks. Handle
// never blocks; a single goroutine forwards events to the downstream sink in
// the order they were received.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []engine.Event
	closed  bool

	out  engine.Sink
	done chan struct{}
}

// NewQueue creates a Queue that forwards to out and starts its goroutine.
func NewQueue(out engine.Sink) *Queue {
	q := &Queue{
		out:  out,
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Handle enqueues ev. Events received after Close are dropped.
func (q *Queue) Handle(ev engine.Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, ev)
	q.mu.Unlock()
	q.cond.Signal()
}

// Len returns the number of events not yet forwarded.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting events and waits until every queued event has been
// forwarded.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, ev := range batch {
			q.out.Handle(ev)
		}
	}
}
