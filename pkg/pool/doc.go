/*
Package pool provides a fixed-size worker pool that executes submitted tasks
asynchronously and hands back a Future per task for retrieving its result.

A pool owns N worker goroutines and a single FIFO task queue. Submit wraps a
task into a queued job plus a Future, pushes the job, and wakes one idle
worker; the worker dequeues, executes, and delivers the outcome through the
Future. Teardown drains the queue before stopping any worker.

Basic usage:

	p := pool.New(4, 0) // 4 workers, unbounded queue
	defer func() { <-p.Shutdown() }()

	fut, err := p.Submit(pool.TaskFunc(func(ctx context.Context) (any, error) {
		return compute(), nil
	}))
	if err != nil {
		log.Fatalf("submit: %v", err)
	}

	value, err := fut.Get() // blocks until the task has run
	if err != nil {
		log.Printf("task failed: %v", err)
	}

Typed results are available through Await:

	fut, _ := p.Submit(pool.TaskFunc(func(ctx context.Context) (any, error) {
		return 42, nil
	}))
	n, err := pool.Await[int](fut)

Scheduling and ordering:

Tasks are dequeued in strict submission order. Completion order is not
guaranteed: with more than one worker, a later, faster task may finish before
an earlier, slower one. With a single worker, execution is fully serialized.

Error handling:

Submit itself fails only for a nil task, a pre-canceled context, a full
bounded queue under the Reject policy, or a pool that has begun shutting
down. Everything the task does — returned errors and panics alike — surfaces
through the Future:

	fut, _ := p.Submit(pool.TaskFunc(func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	}))
	if _, err := fut.Get(); err != nil {
		// err is the task's error; a panic arrives as *pool.PanicError
	}

A panicking task never kills its worker; the pool keeps serving subsequent
submissions.

Backpressure:

With QueueCapacity > 0 the queue is bounded and FullPolicy picks the behavior
at capacity: Block parks the submitter until space frees up, Reject fails the
submission with ErrQueueFull.

	p, err := pool.NewWithConfig(pool.Config{
		WorkerCount:   8,
		QueueCapacity: 100,
		FullPolicy:    pool.Reject,
	})

Shutdown:

Shutdown pushes a sentinel job through the same FIFO and waits for it to be
dequeued, which proves every earlier job has been dequeued too (a drain
barrier, not a completion barrier). It then stops all workers and closes the
returned channel. Submissions made after Shutdown has begun are rejected
with ErrPoolClosed; nothing is ever enqueued and silently dropped.

	done := p.Shutdown()
	<-done // blocks until every worker has exited

Metrics:

NewWithMetrics / NewWithConfigAndMetrics wrap the pool in a MetricsPool that
records Prometheus counters, gauges, and duration histograms via pkg/metrics.

All pool operations are safe for concurrent use from multiple goroutines.
*/
package pool
