/*
Package taskflow provides a fixed-size worker pool for asynchronous task
execution with per-task result handles.

Components:

Worker pool (pkg/pool):
  - pool: N worker goroutines, single FIFO queue, Future result handles
  - graceful shutdown with drain-before-stop semantics
  - optional Prometheus instrumentation

Task queue (pkg/taskqueue):
  - thread-safe generic FIFO used by the pool

Scheduling (pkg/scheduler):
  - time, interval, and cron-based dispatch into a pool

Example usage:

	import (
		"github.com/vnykmshr/taskflow/pkg/pool"
	)

	p := pool.New(4, 0) // 4 workers, unbounded queue
	defer func() { <-p.Shutdown() }()

	fut, err := p.Submit(pool.TaskFunc(func(ctx context.Context) (any, error) {
		return doWork(ctx)
	}))
	if err != nil {
		return err
	}
	result, err := fut.Get()
*/
package taskflow
