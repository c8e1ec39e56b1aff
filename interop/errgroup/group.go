// Package errgroup provides an adapter with the shape of
// golang.org/x/sync/errgroup that runs its functions as flows. It lets code
// written against errgroup move onto the scheduler one call site at a time.
package errgroup

import (
	"context"

	"github.com/NetPo4ki/go-flow/flow"
)

// Group collects functions and runs them as sibling flows on Wait. The
// first failure cancels the group context and the remaining flows.
//
// Unlike x/sync/errgroup, functions start when Wait (or the Task) runs, not
// when Go is called.
type Group struct {
	// parent drives the run; ctx is handed to the functions and is
	// cancelled on the first failure without aborting the run.
	parent context.Context
	cancel context.CancelCauseFunc
	limit  int
	tasks  []flow.Task
}

// WithContext creates a Group bound to ctx. The returned context is
// canceled when any function passed to Go fails or Wait returns.
func WithContext(ctx context.Context) (*Group, context.Context) {
	gctx, cancel := context.WithCancelCause(ctx)
	return &Group{parent: ctx, cancel: cancel}, gctx
}

// SetLimit bounds how many functions run at once. n <= 0 leaves the
// scheduler default.
func (g *Group) SetLimit(n int) { g.limit = n }

// Go adds f to the group. A nil f is ignored.
func (g *Group) Go(f func() error) {
	if f == nil {
		return
	}
	g.tasks = append(g.tasks, flow.Blocking(func(context.Context, ...any) (any, error) {
		return nil, f()
	}).Named("errgroup.func"))
}

// Task returns the group as a cooperative task, so it can run inside an
// existing flow with co.Run. Its failure is the first error in Go order.
func (g *Group) Task() flow.Task {
	return flow.Coop(func(co *flow.Co) flow.Result {
		out, err := co.Till(g.failFast, g.tasks...)
		if err != nil {
			return co.Raise(err)
		}
		return co.Raise(firstError(out))
	}).Named("errgroup")
}

// Wait runs every function and returns the first non-nil error, if any.
func (g *Group) Wait() error {
	ctx := g.parent
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := flow.Run(ctx, g.Task(), flow.WithMaxWorkers(g.limit))
	if g.cancel != nil {
		g.cancel(err)
	}
	return err
}

func (g *Group) failFast(s []flow.Outcome) bool {
	if err := firstError(s); err != nil {
		if g.cancel != nil {
			g.cancel(err)
		}
		return true
	}
	return flow.AllDone(s)
}

func firstError(s []flow.Outcome) error {
	for _, o := range s {
		if o.Kind == flow.Error {
			return o.Err
		}
	}
	return nil
}
