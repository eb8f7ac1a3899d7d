package util

import (
	"sync/atomic"
)

// event is one element of the queue's intrusive stack
type event[T any] struct {
	value T
	next  *event[T]
}

// EventQueue is a lock-free multi-producer single-consumer queue.
//
// Producers push onto an intrusive stack with a CAS loop, the consumer takes the
// whole stack with a single atomic swap and replays it in push order. Producers
// never block, which makes Push safe to call from collector callbacks.
// Under concurrent pushes the order between producers is the order in which
// their CAS succeeded.
type EventQueue[T any] struct {
	top    atomic.Pointer[event[T]]
	size   atomic.Int64
	ready  chan struct{}
	closed atomic.Bool
}

// NewEventQueue creates a new empty queue
func NewEventQueue[T any]() *EventQueue[T] {
	return &EventQueue[T]{
		ready: make(chan struct{}, 1),
	}
}

// Push adds a value to the queue.
// Returns false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *EventQueue[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	e := &event[T]{value: value}
	for {
		top := q.top.Load()
		e.next = top
		if q.top.CompareAndSwap(top, e) {
			break
		}
	}
	q.size.Add(1)

	// wake up the consumer, a pending signal is enough
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Drain removes all queued values and passes them to fn in push order.
// Returns the number of drained values.
//
// Thread-safety: Only one goroutine may drain at a time.
func (q *EventQueue[T]) Drain(fn func(T)) int {
	top := q.top.Swap(nil)
	if top == nil {
		return 0
	}

	// reverse the stack to restore push order
	var head *event[T]
	for top != nil {
		next := top.next
		top.next = head
		head = top
		top = next
	}

	n := 0
	for e := head; e != nil; e = e.next {
		fn(e.value)
		n++
	}
	q.size.Add(int64(-n))
	return n
}

// Ready returns a channel that receives a signal after a Push.
// A single signal may stand for many pushes.
func (q *EventQueue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the approximate number of queued values
func (q *EventQueue[T]) Len() int {
	return int(q.size.Load())
}

// Close rejects further pushes, queued values can still be drained
func (q *EventQueue[T]) Close() {
	q.closed.Store(true)
}

// IsClosed returns true if the queue is closed
func (q *EventQueue[T]) IsClosed() bool {
	return q.closed.Load()
}
