// Package queue provides a generic ring queue that grows up to a limit
// and then sheds its oldest entries.
package queue

import (
	"context"
	"sync"
)

// Queue is a thread-safe FIFO between producers that must never block
// (tracker sinks) and a single batching consumer.
type Queue[T any] struct {
	mu      sync.Mutex
	buf     []T
	head    int
	count   int
	limit   int
	closed  bool
	ready   chan struct{}
	pushed  int64
	popped  int64
	dropped int64
	growths int
}

// Stats is a point-in-time view of queue counters.
type Stats struct {
	Len     int
	Cap     int
	Limit   int
	Pushed  int64
	Popped  int64
	Dropped int64
	Growths int
}

// New creates a queue with the given initial capacity that grows by
// doubling up to limit. A limit below the initial capacity is raised to it.
func New[T any](initial, limit int) *Queue[T] {
	if initial < 1 {
		initial = 1
	}
	if limit < initial {
		limit = initial
	}
	return &Queue[T]{
		buf:   make([]T, initial),
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// Push appends items. When the queue is at its limit the oldest entries
// are dropped to make room. It returns false if the queue is closed.
func (q *Queue[T]) Push(items ...T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	for _, item := range items {
		if q.count == len(q.buf) {
			if len(q.buf) < q.limit {
				q.growLocked()
			} else {
				q.popLocked()
				q.dropped++
				q.popped--
			}
		}
		q.buf[(q.head+q.count)%len(q.buf)] = item
		q.count++
		q.pushed++
	}

	q.signal()
	return true
}

// Drain removes up to max items (all when max <= 0) without blocking.
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	for i := range out {
		out[i] = q.popLocked()
	}
	if q.count > 0 {
		q.signal()
	}
	return out
}

// Wait blocks until the queue has items, is closed, or ctx is done. It
// reports whether items may be available.
func (q *Queue[T]) Wait(ctx context.Context) bool {
	for {
		q.mu.Lock()
		n, closed := q.count, q.closed
		q.mu.Unlock()

		if n > 0 {
			return true
		}
		if closed {
			return false
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return false
		}
	}
}

// Ready returns a channel that receives when items are pushed. It is
// intended for select loops that also wait on a ticker.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Close stops accepting items. Queued items remain drainable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.signal()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Len:     q.count,
		Cap:     len(q.buf),
		Limit:   q.limit,
		Pushed:  q.pushed,
		Popped:  q.popped,
		Dropped: q.dropped,
		Growths: q.growths,
	}
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// popLocked removes the head item. Must be called with lock held and
// count > 0.
func (q *Queue[T]) popLocked() T {
	var zero T
	item := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.popped++
	return item
}

// growLocked doubles capacity, bounded by limit, and unwraps the ring.
func (q *Queue[T]) growLocked() {
	size := len(q.buf) * 2
	if size > q.limit {
		size = q.limit
	}

	buf := make([]T, size)
	n := copy(buf, q.buf[q.head:])
	if n < q.count {
		copy(buf[n:], q.buf[:q.count-n])
	}

	q.buf = buf
	q.head = 0
	q.growths++
}
