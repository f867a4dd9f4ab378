package pool

import (
	"context"
	"fmt"
	"sync"
)

// Future is the result handle returned by Submit. It is fulfilled exactly
// once by the worker that executes the task; the submitter reads it with Get.
//
// A Future is safe to read from multiple goroutines, and reads after
// completion simply return the recorded outcome again. Dropping a Future
// without ever reading it is legal and does not affect the task.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// fulfill records a successful outcome. First writer wins; later calls are no-ops.
func (f *Future) fulfill(value any) {
	f.once.Do(func() {
		f.value = value
		close(f.done)
	})
}

// fail records a failure outcome.
func (f *Future) fail(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Get blocks until the task has finished and returns its value and error.
// Errors returned by the task, and panics converted to *PanicError, surface
// here and nowhere else.
func (f *Future) Get() (any, error) {
	<-f.done
	return f.value, f.err
}

// GetWithContext is Get with a bounded wait. If ctx expires first, the
// context error is returned and the task keeps running; the Future can
// still be read later.
func (f *Future) GetWithContext(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel that closes when the result is available, for use
// in select statements.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await reads a Future and asserts its value to a concrete type. A nil
// value is returned as the zero value of T.
func Await[T any](f *Future) (T, error) {
	var zero T
	v, err := f.Get()
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("future value is %T, not %T", v, zero)
	}
	return typed, nil
}
