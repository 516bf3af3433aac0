package scheduler

import "context"

// Future is the eventual result of a submitted task. It settles exactly once.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.val, f.err = v, err
	close(f.done)
}

// Done is closed once the task has run.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait returns the task's result, or ctx.Err() if ctx ends first.
// Giving up on the wait does not cancel the task; it still runs in order.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}

	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
