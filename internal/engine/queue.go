package engine

import (
	"sync"

	"github.com/roach88/formdeps/internal/ir"
)

// queued is one pending top-level trigger.
type queued struct {
	trigger ir.Trigger

	// hops counts the event re-entries that led to this trigger.
	// Triggers from outside the engine start at zero.
	hops int
}

// triggerQueue is a thread-safe FIFO of pending triggers.
//
// Rapid user input and delayed events enqueue from their own goroutines
// while the Run loop dequeues. The signal channel lets Run wait with
// select so context cancellation is never missed.
type triggerQueue struct {
	mu       sync.Mutex
	items    []queued
	capacity int // zero means unbounded
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newTriggerQueue(capacity int) *triggerQueue {
	return &triggerQueue{
		items:    make([]queued, 0, 16),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue appends a trigger. It returns false if the queue is closed or full.
func (q *triggerQueue) Enqueue(item queued) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return false
	}

	q.items = append(q.items, item)

	// Buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front trigger without blocking.
func (q *triggerQueue) TryDequeue() (queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return queued{}, false
	}

	item := q.items[0]
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return item, true
}

// Wait returns a channel that signals when triggers may be available.
// It is closed when the queue closes.
func (q *triggerQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending triggers.
func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *triggerQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close rejects further triggers and wakes any waiter.
func (q *triggerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
