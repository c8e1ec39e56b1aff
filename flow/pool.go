package flow

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

func defaultMaxWorkers() int { return min(32, runtime.NumCPU()+4) }

// workerPool runs blocking tasks on at most n goroutines. Submission never
// blocks the scheduler: a full pool simply refuses the job.
type workerPool struct {
	group    errgroup.Group
	ctx      context.Context
	cancel   context.CancelFunc
	inflight atomic.Int64
	wake     chan struct{}
}

func newWorkerPool(n int) *workerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &workerPool{ctx: ctx, cancel: cancel, wake: make(chan struct{}, 1)}
	p.group.SetLimit(n)
	return p
}

// job is the completion handle of one blocking call. value and err are
// written before done is closed and read only after.
type job struct {
	done   chan struct{}
	cancel context.CancelFunc
	value  any
	err    error
}

func (p *workerPool) trySubmit(fn BlockingFunc, args []any) (*job, bool) {
	ctx, cancel := context.WithCancel(p.ctx)
	j := &job{done: make(chan struct{}), cancel: cancel}
	p.inflight.Add(1)
	ok := p.group.TryGo(func() error {
		defer func() {
			cancel()
			close(j.done)
			p.inflight.Add(-1)
			p.notify()
		}()
		j.value, j.err = call(ctx, fn, args)
		return nil
	})
	if !ok {
		p.inflight.Add(-1)
		cancel()
		return nil, false
	}
	return j, true
}

func call(ctx context.Context, fn BlockingFunc, args []any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, newPanicError(r)
		}
	}()
	return fn(ctx, args...)
}

func (p *workerPool) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *workerPool) busy() bool { return p.inflight.Load() > 0 }

// poll reports the job's result without blocking.
func (j *job) poll() (v any, err error, finished bool) {
	select {
	case <-j.done:
		return j.value, j.err, true
	default:
		return nil, nil, false
	}
}

// abandon asks the job to stop. Work that ignores its context still runs
// to completion; nobody reads its result.
func (j *job) abandon() { j.cancel() }

// close cancels every job and waits for the workers to return.
func (p *workerPool) close() {
	p.cancel()
	_ = p.group.Wait()
}
