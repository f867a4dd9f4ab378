package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/taskflow/internal/testutil"
	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

func noop(ctx context.Context) (any, error) { return nil, nil }

func shutdownAndWait(t *testing.T, p Pool) {
	t.Helper()
	select {
	case <-p.Shutdown():
	case <-time.After(testutil.TestTimeout):
		t.Fatal("timeout waiting for pool shutdown")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		workerCount   int
		queueCapacity int
		expectPanic   bool
	}{
		{"valid params", 2, 10, false},
		{"single worker", 1, 0, false},
		{"unbounded queue", 3, 0, false},
		{"zero workers", 0, 10, true},
		{"negative workers", -1, 10, true},
		{"negative capacity", 2, -2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.expectPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Error("expected panic")
					}
				}()
			}

			p := New(tt.workerCount, tt.queueCapacity)
			if !tt.expectPanic {
				testutil.AssertEqual(t, p.Size(), tt.workerCount)
				shutdownAndWait(t, p)
			}
		})
	}
}

func TestNewWithConfigValidation(t *testing.T) {
	_, err := NewWithConfig(Config{WorkerCount: 0})
	testutil.AssertError(t, err)
	if !tferrors.IsValidationError(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}

	_, err = NewWithConfig(Config{WorkerCount: 2, QueueCapacity: -1})
	testutil.AssertError(t, err)
}

// Every submitted task's Future eventually becomes ready, for any worker count.
func TestAllFuturesComplete(t *testing.T) {
	for _, workers := range []int{1, 2, 4, 8} {
		p := New(workers, 0)

		const numTasks = 50
		futures := make([]*Future, numTasks)
		for i := 0; i < numTasks; i++ {
			fut, err := p.Submit(TaskFunc(noop))
			testutil.AssertNoError(t, err)
			futures[i] = fut
		}

		for i, fut := range futures {
			select {
			case <-fut.Done():
			case <-time.After(testutil.TestTimeout):
				t.Fatalf("workers=%d: future %d never became ready", workers, i)
			}
		}

		shutdownAndWait(t, p)
		testutil.AssertEqual(t, p.TotalCompleted(), int64(numTasks))
	}
}

func TestResultValue(t *testing.T) {
	p := New(2, 0)
	defer shutdownAndWait(t, p)

	fut, err := p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
		return "hello", nil
	}))
	testutil.AssertNoError(t, err)

	v, err := fut.Get()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v.(string), "hello")
}

// With a single worker, tasks execute in strict submission order.
func TestFIFOOrderSingleWorker(t *testing.T) {
	p := New(1, 0)
	defer shutdownAndWait(t, p)

	const numTasks = 100
	var mu sync.Mutex
	var order []int

	futures := make([]*Future, numTasks)
	for i := 0; i < numTasks; i++ {
		i := i
		fut, err := p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil, nil
		}))
		testutil.AssertNoError(t, err)
		futures[i] = fut
	}

	for _, fut := range futures {
		if _, err := fut.GetWithContext(contextWithTestTimeout(t)); err != nil {
			t.Fatalf("future failed: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	testutil.AssertEqual(t, len(order), numTasks)
	for i, got := range order {
		if got != i {
			t.Fatalf("position %d executed task %d, want %d", i, got, i)
		}
	}
}

func contextWithTestTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testutil.TestTimeout)
	t.Cleanup(cancel)
	return ctx
}

// A failing task surfaces its error through the Future, and the pool keeps
// accepting and completing subsequent submissions.
func TestErrorPropagation(t *testing.T) {
	p := New(1, 0)
	defer shutdownAndWait(t, p)

	wantErr := errors.New("task exploded")
	fut, err := p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
		return nil, wantErr
	}))
	testutil.AssertNoError(t, err)

	_, err = fut.Get()
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}

	// Pool still works afterwards
	fut, err = p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
		return 7, nil
	}))
	testutil.AssertNoError(t, err)
	v, err := Await[int](fut)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, 7)
}

func TestPanicRecovery(t *testing.T) {
	var handlerCalled int32
	var recovered any

	p, err := NewWithConfig(Config{
		WorkerCount: 1,
		PanicHandler: func(task Task, r any) {
			atomic.AddInt32(&handlerCalled, 1)
			recovered = r
		},
	})
	testutil.AssertNoError(t, err)
	defer shutdownAndWait(t, p)

	fut, err := p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
		panic("kaboom")
	}))
	testutil.AssertNoError(t, err)

	_, err = fut.Get()
	testutil.AssertError(t, err)

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("got %T, want *PanicError", err)
	}
	testutil.AssertEqual(t, pe.Value.(string), "kaboom")
	if len(pe.Stack) == 0 {
		t.Error("expected a captured stack trace")
	}
	testutil.AssertEqual(t, atomic.LoadInt32(&handlerCalled), int32(1))
	testutil.AssertEqual(t, recovered.(string), "kaboom")

	// The worker survived the panic
	fut, err = p.Submit(TaskFunc(noop))
	testutil.AssertNoError(t, err)
	_, err = fut.GetWithContext(contextWithTestTimeout(t))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, p.TotalFailed(), int64(1))
}

// Shutdown drains: every task submitted before teardown is dequeued and
// executed before Shutdown's channel closes.
func TestShutdownDrainsQueue(t *testing.T) {
	p := New(2, 0)

	const numTasks = 25
	var executed int32
	for i := 0; i < numTasks; i++ {
		_, err := p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&executed, 1)
			return nil, nil
		}))
		testutil.AssertNoError(t, err)
	}

	shutdownAndWait(t, p)

	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(numTasks))
	testutil.AssertEqual(t, p.TotalCompleted(), int64(numTasks))
	testutil.AssertEqual(t, p.QueueDepth(), 0)
	testutil.AssertEqual(t, p.ActiveWorkers(), 0)
}

func TestShutdownIdempotent(t *testing.T) {
	p := New(2, 0)

	first := p.Shutdown()
	second := p.Shutdown()

	select {
	case <-first:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("first shutdown channel never closed")
	}
	select {
	case <-second:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("second shutdown channel never closed")
	}
}

// Submissions after teardown has begun are rejected, never silently dropped.
func TestSubmitAfterShutdown(t *testing.T) {
	p := New(1, 0)
	shutdownAndWait(t, p)

	_, err := p.Submit(TaskFunc(noop))
	if !errors.Is(err, tferrors.ErrPoolClosed) {
		t.Fatalf("got %v, want ErrPoolClosed", err)
	}
}

func TestSubmitNilTask(t *testing.T) {
	p := New(1, 0)
	defer shutdownAndWait(t, p)

	_, err := p.Submit(nil)
	if !errors.Is(err, tferrors.ErrNilTask) {
		t.Fatalf("got %v, want ErrNilTask", err)
	}
}

func TestSubmitPreCanceledContext(t *testing.T) {
	p := New(1, 0)
	defer shutdownAndWait(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.SubmitWithContext(ctx, TaskFunc(noop))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

// Concurrent submissions from many goroutines all produce completed futures
// with no duplicate or dropped task.
func TestConcurrentSubmit(t *testing.T) {
	p := New(5, 0)

	const goroutines = 10
	const perGoroutine = 100
	const total = goroutines * perGoroutine

	var executed int32
	futures := make(chan *Future, total)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				fut, err := p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
					atomic.AddInt32(&executed, 1)
					return nil, nil
				}))
				if err != nil {
					t.Errorf("submit failed: %v", err)
					return
				}
				futures <- fut
			}
		}()
	}
	wg.Wait()
	close(futures)

	count := 0
	for fut := range futures {
		if _, err := fut.GetWithContext(contextWithTestTimeout(t)); err != nil {
			t.Fatalf("future failed: %v", err)
		}
		count++
	}

	testutil.AssertEqual(t, count, total)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(total))
	testutil.AssertEqual(t, p.TotalSubmitted(), int64(total))

	shutdownAndWait(t, p)
	testutil.AssertEqual(t, p.TotalCompleted(), int64(total))
}

// With one worker, a slow task fully serializes execution: B's future becomes
// ready only after A's.
func TestSingleWorkerSerialization(t *testing.T) {
	p := New(1, 0)
	defer shutdownAndWait(t, p)

	futA, err := p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return 1, nil
	}))
	testutil.AssertNoError(t, err)

	futB, err := p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
		return 2, nil
	}))
	testutil.AssertNoError(t, err)

	select {
	case <-futB.Done():
	case <-time.After(testutil.TestTimeout):
		t.Fatal("timeout waiting for task B")
	}

	// A was dequeued first on the only worker, so it must already be done.
	select {
	case <-futA.Done():
	default:
		t.Fatal("task B completed before task A on a single-worker pool")
	}

	a, _ := Await[int](futA)
	b, _ := Await[int](futB)
	testutil.AssertEqual(t, a, 1)
	testutil.AssertEqual(t, b, 2)
}

// With four workers, four blocking tasks run truly in parallel: all are
// observed running before any completes.
func TestParallelExecution(t *testing.T) {
	p := New(4, 0)
	defer shutdownAndWait(t, p)

	const workers = 4
	var running int32
	release := make(chan struct{})

	futures := make([]*Future, workers)
	for i := 0; i < workers; i++ {
		fut, err := p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
			atomic.AddInt32(&running, 1)
			<-release
			return nil, nil
		}))
		testutil.AssertNoError(t, err)
		futures[i] = fut
	}

	testutil.WaitForInt32(t, &running, workers, testutil.TestTimeout)
	testutil.AssertEqual(t, p.ActiveWorkers(), workers)

	// None may have completed while the barrier is held
	for i, fut := range futures {
		select {
		case <-fut.Done():
			t.Fatalf("task %d completed before the barrier was released", i)
		default:
		}
	}

	close(release)
	for _, fut := range futures {
		if _, err := fut.GetWithContext(contextWithTestTimeout(t)); err != nil {
			t.Fatalf("future failed: %v", err)
		}
	}
}

func TestBoundedQueueReject(t *testing.T) {
	p, err := NewWithConfig(Config{
		WorkerCount:   1,
		QueueCapacity: 1,
		FullPolicy:    Reject,
	})
	testutil.AssertNoError(t, err)
	defer shutdownAndWait(t, p)

	var started int32
	release := make(chan struct{})
	defer close(release)

	// Occupy the only worker
	_, err = p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
		atomic.AddInt32(&started, 1)
		<-release
		return nil, nil
	}))
	testutil.AssertNoError(t, err)
	testutil.WaitForInt32(t, &started, 1, testutil.TestTimeout)

	// Fill the queue
	_, err = p.Submit(TaskFunc(noop))
	testutil.AssertNoError(t, err)

	// Queue is now at capacity
	_, err = p.Submit(TaskFunc(noop))
	if !errors.Is(err, tferrors.ErrQueueFull) {
		t.Fatalf("got %v, want ErrQueueFull", err)
	}
}

func TestBoundedQueueBlock(t *testing.T) {
	p, err := NewWithConfig(Config{
		WorkerCount:   1,
		QueueCapacity: 1,
		FullPolicy:    Block,
	})
	testutil.AssertNoError(t, err)
	defer shutdownAndWait(t, p)

	var started int32
	release := make(chan struct{})

	_, err = p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
		atomic.AddInt32(&started, 1)
		<-release
		return nil, nil
	}))
	testutil.AssertNoError(t, err)
	testutil.WaitForInt32(t, &started, 1, testutil.TestTimeout)

	_, err = p.Submit(TaskFunc(noop)) // fills the queue
	testutil.AssertNoError(t, err)

	// This submission must block until the worker frees queue space.
	submitted := make(chan error, 1)
	go func() {
		_, err := p.Submit(TaskFunc(noop))
		submitted <- err
	}()

	select {
	case err := <-submitted:
		t.Fatalf("submit returned (%v) while the queue was still full", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case err := <-submitted:
		testutil.AssertNoError(t, err)
	case <-time.After(testutil.TestTimeout):
		t.Fatal("blocked submit never completed")
	}
}

func TestTaskTimeout(t *testing.T) {
	p, err := NewWithConfig(Config{
		WorkerCount: 1,
		TaskTimeout: 20 * time.Millisecond,
	})
	testutil.AssertNoError(t, err)
	defer shutdownAndWait(t, p)

	fut, err := p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
		select {
		case <-time.After(time.Second):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))
	testutil.AssertNoError(t, err)

	_, err = fut.Get()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestWorkerLifecycleHooks(t *testing.T) {
	var started, stopped int32

	p, err := NewWithConfig(Config{
		WorkerCount:   3,
		OnWorkerStart: func(workerID int) { atomic.AddInt32(&started, 1) },
		OnWorkerStop:  func(workerID int) { atomic.AddInt32(&stopped, 1) },
	})
	testutil.AssertNoError(t, err)

	testutil.WaitForInt32(t, &started, 3, testutil.TestTimeout)

	shutdownAndWait(t, p)
	testutil.AssertEqual(t, atomic.LoadInt32(&stopped), int32(3))
}

func TestQueueDepth(t *testing.T) {
	p := New(1, 0)
	defer shutdownAndWait(t, p)

	testutil.AssertEqual(t, p.QueueDepth(), 0)

	var started int32
	release := make(chan struct{})

	_, err := p.Submit(TaskFunc(func(ctx context.Context) (any, error) {
		atomic.AddInt32(&started, 1)
		<-release
		return nil, nil
	}))
	testutil.AssertNoError(t, err)
	testutil.WaitForInt32(t, &started, 1, testutil.TestTimeout)

	futures := make([]*Future, 3)
	for i := range futures {
		fut, err := p.Submit(TaskFunc(noop))
		testutil.AssertNoError(t, err)
		futures[i] = fut
	}
	testutil.AssertEqual(t, p.QueueDepth(), 3)

	close(release)
	for _, fut := range futures {
		if _, err := fut.GetWithContext(contextWithTestTimeout(t)); err != nil {
			t.Fatalf("future failed: %v", err)
		}
	}
	testutil.AssertEqual(t, p.QueueDepth(), 0)
}
