/*
Package taskqueue provides a minimal thread-safe FIFO queue used as the work
queue of the taskflow worker pool.

The queue is deliberately non-blocking: Pop returns immediately with a false
flag when empty. Blocking-until-available is layered above it by the pool's
condition-variable protocol (see pkg/pool), not built into the queue itself.

	q := taskqueue.New[int]()
	q.Push(1)
	q.Push(2)

	if v, ok := q.Pop(); ok {
		fmt.Println(v) // 1
	}

All methods are safe for concurrent use from multiple goroutines.
*/
package taskqueue
