package async

import (
	"context"
	"sync"
	"time"
)

// Future represents the result of an asynchronous computation.
type Future[T any] struct {
	value T
	err   error
	once  sync.Once
	done  chan struct{}
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolver completes a Future created by NewPromise.
// Only the first call has an effect; later calls return ErrAlreadyResolved.
type Resolver[T any] func(value T, err error) error

// NewPromise returns an unresolved Future together with the function that resolves it.
// The resolver may be called from any goroutine.
func NewPromise[T any]() (*Future[T], Resolver[T]) {
	f := newFuture[T]()
	return f, f.resolve
}

// Resolved returns an already completed Future.
func Resolved[T any](value T, err error) *Future[T] {
	f := newFuture[T]()
	_ = f.resolve(value, err)
	return f
}

// Async executes fn in a new goroutine and returns a Future for its result.
func Async[T, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := newFuture[U]()

	go func() {
		// Early exit prevents running work for an already canceled caller
		select {
		case <-ctx.Done():
			var zero U
			_ = f.resolve(zero, ctx.Err())
			return
		default:
		}

		v, err := fn(ctx, param)
		_ = f.resolve(v, err)
	}()

	return f
}

func (f *Future[T]) resolve(value T, err error) error {
	resolved := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
		resolved = true
	})
	if !resolved {
		return ErrAlreadyResolved
	}
	return nil
}

// Await blocks until the future completes.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.value, f.err
}

// AwaitContext blocks until the future completes or ctx is done.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitWithTimeout waits at most timeout for completion.
// Returns ErrTimeout if the future is still pending.
func (f *Future[T]) AwaitWithTimeout(timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.value, f.err
	case <-timer.C:
		var zero T
		return zero, ErrTimeout
	}
}

// Done returns a channel closed on completion.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsComplete checks if the future is complete without blocking.
func (f *Future[T]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
