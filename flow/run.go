package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run seeds a root flow with t and drives the scheduler until the root
// finishes. It returns the root's value, or its failure with the scheduler's
// own frames stripped from any panic stack.
//
// An internal inconsistency or the cancellation of ctx tears every live flow
// down before Run returns. A Scheduler runs one tree at a time; a concurrent
// call fails with ErrAlreadyRunning.
func (s *Scheduler) Run(ctx context.Context, t Task) (any, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Store(false)
	if ctx == nil {
		ctx = context.Background()
	}

	id := uuid.NewString()
	r := &run{
		s:        s,
		ctx:      ctx,
		id:       id,
		log:      s.log.With("run", id),
		obs:      s.opts.Observer,
		registry: make(map[ID]*record),
	}
	start := time.Now()
	r.log.Debug("flow: run started", "task", t.name)

	v, err := r.loop(t)
	err = stripError(err)
	dur := time.Since(start)
	if r.obs != nil {
		r.obs.RunFinished(ctx, id, dur, err)
	}
	r.log.Debug("flow: run finished", "duration", dur, "error", err)

	var pe *PanicError
	if !s.opts.PanicAsError && errors.As(err, &pe) {
		panic(pe)
	}
	return v, err
}

// Run executes t on a fresh Scheduler and closes it afterwards.
func Run(ctx context.Context, t Task, opts ...Option) (any, error) {
	s := New(opts...)
	defer s.Close()
	return s.Run(ctx, t)
}

// Call is Run with the root value asserted to T.
func Call[T any](ctx context.Context, t Task, opts ...Option) (T, error) {
	var zero T
	v, err := Run(ctx, t, opts...)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("flow: %s returned %T, want %T", t.name, v, zero)
	}
	return out, nil
}

// Wrap turns fn into an ordinary function. Every call runs fn as the root
// of a new scheduler with the given arguments.
func Wrap(fn Func, opts ...Option) func(ctx context.Context, args ...any) (any, error) {
	return func(ctx context.Context, args ...any) (any, error) {
		return Run(ctx, Coop(fn, args...), opts...)
	}
}
