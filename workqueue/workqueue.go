// Package workqueue provides the hand-off queues between the acquisition
// callback and the pipeline workers.
//
// Bounded queues implement drop-newest backpressure: TryPush never blocks
// and discards the incoming item when the queue is full. This is a
// deliberate policy, not a fallback — the acquisition callback runs on
// the camera's thread and must return quickly, and for both
// visualization and triggered analysis a dropped frame under load is
// cheaper than a stalled capture. Items that are not dropped keep FIFO
// order.
//
// The Unbounded queue backs the persistence path, where a row that
// survived a successful fit must never be discarded.
package workqueue

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTimeout is returned by Pop when no item arrived within the timeout.
var ErrTimeout = errors.New("workqueue: pop timed out")

// Bounded is a fixed-capacity FIFO queue with a non-blocking producer
// side. Safe for any number of producers and consumers.
type Bounded[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

// NewBounded creates a queue holding at most capacity items.
func NewBounded[T any](capacity int) *Bounded[T] {
	return &Bounded[T]{ch: make(chan T, capacity)}
}

// TryPush enqueues item and returns true, or returns false immediately
// if the queue is full. It never blocks.
func (q *Bounded[T]) TryPush(item T) bool {
	select {
	case q.ch <- item:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop blocks until an item is available or the timeout elapses.
func (q *Bounded[T]) Pop(timeout time.Duration) (T, error) {
	select {
	case item := <-q.ch:
		return item, nil
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case item := <-q.ch:
		return item, nil
	case <-timer.C:
		var zero T
		return zero, ErrTimeout
	}
}

// Clear drains the queue and returns how many items were discarded.
// Used when leaving triggered mode so stale frames are not analyzed
// under the new mode.
func (q *Bounded[T]) Clear() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

// Len returns the current number of queued items.
func (q *Bounded[T]) Len() int { return len(q.ch) }

// Dropped returns the total number of items rejected by TryPush.
func (q *Bounded[T]) Dropped() uint64 { return q.dropped.Load() }

// Unbounded is a FIFO queue with no capacity limit. Push never fails and
// never blocks beyond the internal lock.
type Unbounded[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
}

// NewUnbounded creates an empty unbounded queue.
func NewUnbounded[T any]() *Unbounded[T] {
	return &Unbounded[T]{signal: make(chan struct{}, 1)}
}

// Push appends item to the queue.
func (q *Unbounded[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop blocks until an item is available or the timeout elapses.
func (q *Unbounded[T]) Pop(timeout time.Duration) (T, error) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			var zero T
			return zero, ErrTimeout
		}
		timer := time.NewTimer(remaining)
		select {
		case <-q.signal:
			timer.Stop()
		case <-timer.C:
			var zero T
			return zero, ErrTimeout
		}
	}
}

// Len returns the current number of queued items.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
