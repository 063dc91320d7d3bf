package loader

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/g3d/gpucore"
)

// ErrPoolClosed is returned by tasks submitted after Close.
var ErrPoolClosed = errors.New("loader: pool closed")

// Pool runs decode work on a bounded number of goroutines. A failing task
// does not cancel the others; its error is delivered through its Future and
// also reported by Wait.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	g      errgroup.Group
	closed atomic.Bool
}

// NewPool creates a pool running at most workers tasks at once. workers <= 0
// selects runtime.GOMAXPROCS(0).
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{ctx: ctx, cancel: cancel}
	p.g.SetLimit(workers)
	return p
}

// Submit schedules fn on p and returns its Future. It blocks while every
// worker is busy.
func Submit[T any](p *Pool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	if p.closed.Load() {
		var zero T
		f.resolve(zero, ErrPoolClosed)
		return f
	}
	p.g.Go(func() error {
		if err := p.ctx.Err(); err != nil {
			var zero T
			f.resolve(zero, err)
			return err
		}
		v, err := fn(p.ctx)
		f.resolve(v, err)
		return err
	})
	return f
}

// LoadImageAsync decodes the file at path on p.
func LoadImageAsync(p *Pool, path string) *Future[gpucore.TextureData] {
	return Submit(p, func(context.Context) (gpucore.TextureData, error) {
		return LoadImage(path)
	})
}

// Wait blocks until every submitted task has finished and returns the first
// error.
func (p *Pool) Wait() error { return p.g.Wait() }

// Close cancels tasks that have not started, waits for running ones, and
// rejects later submissions.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.cancel()
	_ = p.g.Wait()
}
