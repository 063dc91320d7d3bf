package loader

import "context"

// Future is the pending result of a Pool task. The render thread polls it
// between frames; other goroutines may Wait on it.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve is called exactly once, by the task that owns the future.
func (f *Future[T]) resolve(v T, err error) {
	f.value, f.err = v, err
	close(f.done)
}

// Poll returns the result without blocking. ok is false while the task is
// still running.
func (f *Future[T]) Poll() (value T, ok bool, err error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	default:
		var zero T
		return zero, false, nil
	}
}

// Wait blocks until the task finishes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }
