package pool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

// worker is a long-lived goroutine bound to one pool. It repeatedly waits
// for work, dequeues, executes, and loops until the pool stops.
type worker struct {
	id   int
	pool *workerPool
}

// run is the worker's main loop.
//
// The wait predicate (stopped || queue non-empty) is spurious-wake safe: a
// woken worker re-checks the queue rather than trusting the wake reason, so
// several workers woken for a single job resolve cleanly. At most one pop
// succeeds and the rest return to waiting.
func (w *worker) run() {
	p := w.pool
	defer p.wg.Done()

	if p.config.OnWorkerStop != nil {
		defer p.config.OnWorkerStop(w.id)
	}
	if p.config.OnWorkerStart != nil {
		p.config.OnWorkerStart(w.id)
	}

	for {
		p.mu.Lock()
		for !p.stopped && p.queue.Empty() {
			p.idle.Wait()
		}
		stopped := p.stopped
		p.mu.Unlock()

		// Pop outside the wait lock so the pool mutex is never held
		// across the queue's own locking.
		if j, ok := p.queue.Pop(); ok {
			if p.config.QueueCapacity > 0 {
				p.mu.Lock()
				p.notFull.Signal()
				p.mu.Unlock()
			}
			// A job that was already visible in the queue is executed
			// even when the stop flag is set; shutdown never discards
			// dequeued-but-unrun work.
			j()
			continue
		}

		if stopped {
			return
		}
	}
}

// runTask executes one task and delivers its outcome through the Future.
// A panic in user code is recovered and converted to a *PanicError; the
// worker itself always survives.
func (p *workerPool) runTask(ctx context.Context, task Task, fut *Future) {
	atomic.AddInt64(&p.active, 1)
	defer atomic.AddInt64(&p.active, -1)

	defer func() {
		if r := recover(); r != nil {
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(task, r)
			}
			atomic.AddInt64(&p.failed, 1)
			atomic.AddInt64(&p.completed, 1)
			fut.fail(&PanicError{Value: r, Stack: debug.Stack()})
		}
	}()

	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	value, err := task.Execute(ctx)
	if err != nil {
		atomic.AddInt64(&p.failed, 1)
		fut.fail(err)
	} else {
		fut.fulfill(value)
	}
	atomic.AddInt64(&p.completed, 1)
}

// PanicError is delivered through a Future when the task panicked during
// execution. Value holds the recovered panic value and Stack the stack trace
// captured at recovery.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v\nstack trace:\n%s", e.Value, e.Stack)
}
