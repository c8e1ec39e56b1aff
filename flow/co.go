package flow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	cron "github.com/netresearch/go-cron"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Co is the handle a cooperative body uses to talk to its scheduler.
//
// A Co must only be used from the goroutine that runs the body it was
// passed to. Each primitive suspends the body until the scheduler answers;
// once the flow has been cancelled they all return ErrCancelled without
// suspending, so deferred cleanup can finish.
type Co struct {
	id     ID
	parent ID
	args   []any
	ctx    context.Context
	log    *slog.Logger
	cr     *coroutine
}

// ID returns the identity of the running flow.
func (co *Co) ID() ID { return co.id }

// Parent returns the identity of the flow that spawned this one, or zero
// for the root.
func (co *Co) Parent() ID { return co.parent }

// Args returns the arguments the task was created with.
func (co *Co) Args() []any { return co.args }

// Arg returns the i-th argument, or nil when there is none.
func (co *Co) Arg(i int) any {
	if i < 0 || i >= len(co.args) {
		return nil
	}
	return co.args[i]
}

// Context returns the context of the run. It is cancelled when the run is.
func (co *Co) Context() context.Context { return co.ctx }

// Logger returns the scheduler's logger annotated with the flow id.
func (co *Co) Logger() *slog.Logger { return co.log }

// Return ends the body with value v.
func (co *Co) Return(v any) Result { return Result{kind: resultReturn, value: v} }

// Raise ends the body with err. A nil err is the same as Return(nil).
func (co *Co) Raise(err error) Result {
	if err == nil {
		return co.Return(nil)
	}
	return Result{kind: resultRaise, err: err}
}

// Done ends the body with v, or with err when it is non-nil.
func (co *Co) Done(v any, err error) Result {
	if err != nil {
		return co.Raise(err)
	}
	return co.Return(v)
}

// TailCall replaces the running task with t. The flow keeps its identity
// and parent, so chains of tail calls never grow the flow tree.
func (co *Co) TailCall(t Task) Result { return Result{kind: resultTailCall, next: t} }

// Spawn starts t as a child flow and returns its identity without waiting
// for it.
func (co *Co) Spawn(t Task) (ID, error) {
	r := co.cr.suspend(spawnRequest{task: t})
	return r.id, r.err
}

// Run starts t as a child flow and waits for it. The child's failure is
// returned as is.
//
// Only t's own outcome answers the call. Results of children started with
// Spawn stay buffered; if they are never drained with GetResults or
// CancelRemaining, the flow fails with an InconsistencyError when it
// completes.
func (co *Co) Run(t Task) (any, error) {
	r := co.cr.suspend(&runRequest{task: t})
	return r.value, r.err
}

// GetResults waits until at least one child has finished since the last
// call and returns the finished children's outcomes by identity.
func (co *Co) GetResults() (map[ID]Outcome, error) {
	r := co.cr.suspend(getResultsRequest{})
	return r.results, r.err
}

// CancelRemaining tears down every descendant that is still running. The
// returned map holds the outcomes buffered so far plus a Cancelled outcome
// for each direct child that was torn down.
func (co *Co) CancelRemaining() (map[ID]Outcome, error) {
	r := co.cr.suspend(cancelRemainingRequest{})
	return r.results, r.err
}

// Till runs every task as a child and waits until pred holds for the
// snapshot of their outcomes, in task order. Children still running at
// that point are cancelled. Not-yet-finished entries are [Spawned].
func (co *Co) Till(pred func([]Outcome) bool, tasks ...Task) ([]Outcome, error) {
	r := co.cr.suspend(tillRequest{pred: pred, tasks: tasks})
	out, _ := r.value.([]Outcome)
	return out, r.err
}

// TillAll waits for every task.
func (co *Co) TillAll(tasks ...Task) ([]Outcome, error) {
	return co.Till(AllDone, tasks...)
}

// TillAny waits for the first task to finish and cancels the rest.
func (co *Co) TillAny(tasks ...Task) ([]Outcome, error) {
	return co.Till(AnyDone, tasks...)
}

// OnTimeout sleeps for delay on the worker pool, then runs t.
func (co *Co) OnTimeout(delay time.Duration, t Task) (any, error) {
	r := co.cr.suspend(timeoutRequest{delay: delay, task: t})
	return r.value, r.err
}

// OnInterval runs t every period until the flow is cancelled or t fails.
func (co *Co) OnInterval(period time.Duration, t Task) (any, error) {
	r := co.cr.suspend(intervalRequest{period: period, task: t})
	return r.value, r.err
}

// OnSignal waits for sig once, then runs t. The signal is only captured
// while waiting; the previous disposition is restored afterwards.
func (co *Co) OnSignal(sig os.Signal, t Task) (any, error) {
	r := co.cr.suspend(signalRequest{sig: sig, task: t})
	return r.value, r.err
}

// OnSignalForever runs t every time sig arrives until the flow is
// cancelled or t fails.
func (co *Co) OnSignalForever(sig os.Signal, t Task) (any, error) {
	r := co.cr.suspend(signalForeverRequest{sig: sig, task: t})
	return r.value, r.err
}

// OnCron runs t at every activation of the standard five-field cron spec
// until the flow is cancelled or t fails.
func (co *Co) OnCron(spec string, t Task) (any, error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("flow: parse cron %q: %w", spec, err)
	}
	r := co.cr.suspend(cronRequest{spec: spec, schedule: sched, task: t})
	return r.value, r.err
}

// AllDone is the TillAll predicate.
func AllDone(s []Outcome) bool {
	for _, o := range s {
		if !o.Done() {
			return false
		}
	}
	return true
}

// AnyDone is the TillAny predicate.
func AnyDone(s []Outcome) bool {
	for _, o := range s {
		if o.Done() {
			return true
		}
	}
	return false
}
