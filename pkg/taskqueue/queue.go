package taskqueue

import "sync"

// Queue is a thread-safe FIFO queue. Mutation (Push, Pop) takes the write
// lock; Len and Empty take the read lock and may run concurrently with each
// other. The queue is unbounded; capacity limits are enforced by callers.
type Queue[T any] struct {
	mu    sync.RWMutex
	items []T
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends item to the tail of the queue. It always succeeds.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// Pop removes and returns the head of the queue. It returns the zero value
// and false when the queue is empty; it never blocks.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items[0] = zero // release the reference so the backing array does not pin it
	q.items = q.items[1:]

	// Reclaim the backing array once the live window has drained.
	if len(q.items) == 0 {
		q.items = nil
	}
	return item, true
}

// Len returns the number of queued items. The value is a point-in-time
// snapshot and may be stale by the time the caller acts on it; use it for
// diagnostics, not correctness decisions.
func (q *Queue[T]) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Empty reports whether the queue currently holds no items. Like Len, the
// result is a snapshot.
func (q *Queue[T]) Empty() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items) == 0
}
