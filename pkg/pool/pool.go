package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/common/validation"
	"github.com/vnykmshr/taskflow/pkg/taskqueue"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context and returns its result.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) (any, error)
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) (any, error)

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) (any, error) {
	return f(ctx)
}

// FullPolicy selects what Submit does when a bounded queue is at capacity.
type FullPolicy int

const (
	// Block makes Submit wait until queue space frees up or the pool shuts down.
	Block FullPolicy = iota

	// Reject makes Submit fail immediately with ErrQueueFull.
	Reject
)

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// QueueCapacity is the maximum number of tasks that can be queued.
	// If 0, the queue is unbounded and Submit never blocks.
	QueueCapacity int

	// FullPolicy selects the backpressure behavior when QueueCapacity is
	// reached: Block (default) or Reject. Ignored for unbounded queues.
	FullPolicy FullPolicy

	// TaskTimeout is the default timeout for individual task execution.
	// Zero means no timeout.
	TaskTimeout time.Duration

	// PanicHandler is called when a task panics during execution, before
	// the panic is converted to a *PanicError on the task's Future.
	PanicHandler func(task Task, recovered any)

	// OnWorkerStart is called when a worker starts.
	// Useful for per-worker initialization.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker stops.
	OnWorkerStop func(workerID int)
}

// Pool represents a worker pool that executes tasks concurrently.
type Pool interface {
	// Submit enqueues a task for execution and returns a Future for its
	// result. Submit never blocks waiting for the task to run; with an
	// unbounded queue it does not block at all.
	Submit(task Task) (*Future, error)

	// SubmitWithContext is Submit with a caller context. The context is
	// passed to the task's Execute method; a context that is already
	// canceled fails the submission itself.
	SubmitWithContext(ctx context.Context, task Task) (*Future, error)

	// Shutdown initiates a graceful shutdown: further submissions are
	// rejected, every already-queued task is still dequeued and executed,
	// then all workers stop. The returned channel closes once every worker
	// has exited; receive from it to block until teardown is complete.
	// Shutdown is idempotent.
	Shutdown() <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// QueueDepth returns the current number of queued tasks waiting for
	// execution. Diagnostic only; the value may be stale immediately.
	QueueDepth() int

	// ActiveWorkers returns the number of workers currently executing a task.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks accepted by Submit.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks that finished
	// executing, whether they succeeded or failed.
	TotalCompleted() int64

	// TotalFailed returns the total number of tasks that returned an error
	// or panicked.
	TotalFailed() int64
}

// job is the queued unit of work: a zero-argument closure binding a task,
// its submission context, and its Future.
type job func()

// workerPool implements the Pool interface.
type workerPool struct {
	config Config

	queue *taskqueue.Queue[job]

	// mu guards closed/stopping and backs both condition variables. It is
	// never held while a task executes, and workers release it before
	// popping from the queue.
	mu      sync.Mutex
	idle    *sync.Cond // wake-one on submit, wake-all on shutdown
	notFull *sync.Cond // backpressure for bounded queues with the Block policy
	closed  bool       // set when Shutdown begins; rejects new submissions
	stopped bool       // set after the drain barrier; lets workers exit

	workers []*worker
	wg      sync.WaitGroup

	done         chan struct{}
	shutdownOnce sync.Once

	active    int64
	submitted int64
	completed int64
	failed    int64
}

// New creates a worker pool with the given worker count and queue capacity
// (0 for unbounded). It panics on invalid arguments; use NewWithConfig to
// get an error instead.
func New(workerCount, queueCapacity int) Pool {
	p, err := NewWithConfig(Config{
		WorkerCount:   workerCount,
		QueueCapacity: queueCapacity,
	})
	if err != nil {
		panic(err)
	}
	return p
}

// NewWithConfig creates a worker pool with the specified configuration.
// The workers are started before NewWithConfig returns.
func NewWithConfig(config Config) (Pool, error) {
	if err := validation.ValidatePositive("pool", "WorkerCount", config.WorkerCount); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("pool", "QueueCapacity", config.QueueCapacity); err != nil {
		return nil, err
	}

	p := &workerPool{
		config: config,
		queue:  taskqueue.New[job](),
		done:   make(chan struct{}),
	}
	p.idle = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)

	p.workers = make([]*worker, config.WorkerCount)
	for i := range p.workers {
		p.workers[i] = &worker{id: i, pool: p}
		p.wg.Add(1)
		go p.workers[i].run()
	}

	return p, nil
}

// Submit adds a task to the pool for execution.
// The task will be executed with context.Background().
func (p *workerPool) Submit(task Task) (*Future, error) {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext adds a task to the pool for execution with the given
// context. Execution failures are never returned here; they surface through
// the Future. Submission itself fails only for a nil task, a pre-canceled
// context, a full queue under the Reject policy, or a pool that has begun
// shutting down.
func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) (*Future, error) {
	if task == nil {
		return nil, tferrors.ErrNilTask
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Deterministic behavior for pre-canceled contexts.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fut := newFuture()
	j := func() { p.runTask(ctx, task, fut) }

	// The closed check and the push happen under the same lock so that a
	// submission racing with Shutdown either lands before the drain barrier
	// or is rejected; it can never be enqueued and silently dropped.
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, tferrors.ErrPoolClosed
	}

	if p.config.QueueCapacity > 0 {
		for p.queue.Len() >= p.config.QueueCapacity {
			if p.config.FullPolicy == Reject {
				return nil, tferrors.ErrQueueFull
			}
			p.notFull.Wait()
			if p.closed {
				return nil, tferrors.ErrPoolClosed
			}
		}
	}

	p.queue.Push(j)
	atomic.AddInt64(&p.submitted, 1)
	p.idle.Signal() // wake-one: exactly one new job is available
	return fut, nil
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		// Drain barrier: a sentinel pushed through the same FIFO proves,
		// once it runs, that every job queued before it has been dequeued.
		barrier := newFuture()

		p.mu.Lock()
		p.closed = true
		p.queue.Push(func() { barrier.fulfill(nil) })
		p.idle.Signal()
		p.mu.Unlock()

		go func() {
			<-barrier.Done()

			p.mu.Lock()
			p.stopped = true
			p.idle.Broadcast()    // wake-all: every idle worker must observe the stop flag
			p.notFull.Broadcast() // blocked submitters wake and see closed
			p.mu.Unlock()

			p.wg.Wait()
			close(p.done)
		}()
	})
	return p.done
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

// QueueDepth returns the current number of queued tasks.
func (p *workerPool) QueueDepth() int {
	return p.queue.Len()
}

// ActiveWorkers returns the number of workers currently executing a task.
func (p *workerPool) ActiveWorkers() int {
	return int(atomic.LoadInt64(&p.active))
}

// TotalSubmitted returns the total number of tasks accepted by Submit.
func (p *workerPool) TotalSubmitted() int64 {
	return atomic.LoadInt64(&p.submitted)
}

// TotalCompleted returns the total number of tasks that finished executing.
func (p *workerPool) TotalCompleted() int64 {
	return atomic.LoadInt64(&p.completed)
}

// TotalFailed returns the total number of tasks that returned an error or panicked.
func (p *workerPool) TotalFailed() int64 {
	return atomic.LoadInt64(&p.failed)
}
