package flow

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// Scheduler runs flow trees to completion, one at a time. Its worker pool
// is shared by every run; release it with Close.
type Scheduler struct {
	opts Options
	log  *slog.Logger
	pool *workerPool

	running atomic.Bool
	closed  atomic.Bool

	live    atomic.Int64
	queued  atomic.Int64
	spawned atomic.Int64
}

// Stats is a point-in-time view of a scheduler.
type Stats struct {
	Live     int64 // flows in the registry
	Queued   int64 // records waiting in the queue
	InFlight int64 // blocking tasks on the worker pool
	Spawned  int64 // flows created since New
}

// New returns a Scheduler configured by opts.
func New(optFns ...Option) *Scheduler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{opts: opts, log: log, pool: newWorkerPool(opts.MaxWorkers)}
}

// Stats is safe to call from any goroutine.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Live:     s.live.Load(),
		Queued:   s.queued.Load(),
		InFlight: s.pool.inflight.Load(),
		Spawned:  s.spawned.Load(),
	}
}

// Close cancels abandoned blocking work and waits for the worker pool to
// drain. It must not be called while Run is in progress.
func (s *Scheduler) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.close()
	}
	return nil
}

// run is the state of one Scheduler.Run call.
type run struct {
	s     *Scheduler
	ctx   context.Context
	id    string
	log   *slog.Logger
	obs   Observer
	root  ID
	final *Outcome

	registry map[ID]*record
	queue    []*record
}

func (r *run) push(f *record) { r.queue = append(r.queue, f) }

func (r *run) pop() *record {
	f := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	return f
}

func (r *run) newID() ID {
	for {
		id := ID(rand.Uint64())
		if _, taken := r.registry[id]; id != 0 && !taken {
			return id
		}
	}
}

func (r *run) register(t Task, parent ID) *record {
	f := newRecord(r.newID(), parent, t)
	r.registry[f.id] = f
	r.s.spawned.Add(1)
	return f
}

func (r *run) loop(root Task) (any, error) {
	f := r.register(root, 0)
	r.root = f.id
	r.push(f)
	return r.drain()
}

// drain pops records until the queue is empty. A full pass in which no
// record progressed parks on the worker pool instead of spinning. With
// nothing in flight on the pool such a pass means the bookkeeping is broken.
func (r *run) drain() (any, error) {
	// idle is set after a full pass that found the pool empty. A job that
	// finished during that pass is only seen on the next one.
	stalled, idle := 0, false
	for len(r.queue) > 0 {
		if err := r.ctx.Err(); err != nil {
			r.teardownAll()
			return nil, err
		}
		f := r.pop()
		if f.dead {
			continue
		}
		progressed, err := r.step(f)
		r.s.live.Store(int64(len(r.registry)))
		r.s.queued.Store(int64(len(r.queue)))
		if err != nil {
			r.log.Warn("flow: run aborted", "flow", f.id.String(), "task", f.task.name, "error", err)
			r.teardownAll()
			return nil, err
		}
		if progressed {
			stalled, idle = 0, false
			continue
		}
		if stalled++; stalled < len(r.queue) {
			continue
		}
		stalled = 0
		if !r.s.pool.busy() {
			if idle {
				r.teardownAll()
				return nil, inconsistent(f.id, nil, "no flow can make progress")
			}
			idle = true
			continue
		}
		select {
		case <-r.s.pool.wake:
		case <-r.ctx.Done():
		}
	}
	if r.final == nil {
		return nil, inconsistent(r.root, nil, "run ended without a root outcome")
	}
	return r.final.Unwrap()
}

// step applies the first rule matching f's state. The order of the cases
// is significant.
func (r *run) step(f *record) (bool, error) {
	switch {
	case f.state == stateUninitialized:
		return r.initialize(f)
	case f.job != nil:
		return r.poll(f), nil
	case f.state == stateTailCalled:
		r.tailCall(f)
		return true, nil
	case f.state == stateYielded:
		return r.dispatch(f)
	case f.state == stateReturned, f.state == stateRaised:
		return true, r.complete(f)
	}
	return false, inconsistent(f.id, nil, "no rule matches state %s", f.state)
}

func (r *run) initialize(f *record) (bool, error) {
	t := f.task
	if !t.callable() {
		return false, &InconsistencyError{Flow: f.id, Reason: "task " + t.name, Cause: ErrNotCallable}
	}
	if t.blocking != nil {
		j, ok := r.s.pool.trySubmit(t.blocking, t.args)
		if !ok {
			r.push(f)
			return false, nil
		}
		f.job, f.state = j, stateRunning
	} else {
		co := &Co{
			id:     f.id,
			parent: f.parent,
			args:   t.args,
			ctx:    r.ctx,
			log:    r.log.With("flow", f.id.String()),
		}
		cr, st := startCoroutine(t.coop, co)
		f.co = cr
		f.apply(st)
	}
	if f.started.IsZero() {
		f.started = time.Now()
		if r.obs != nil {
			r.obs.FlowStarted(r.ctx, f.info(r.id))
		}
	}
	r.push(f)
	return true, nil
}

func (r *run) poll(f *record) bool {
	v, err, finished := f.job.poll()
	if finished {
		f.job = nil
		if err != nil {
			f.state, f.err = stateRaised, err
		} else {
			f.state, f.value = stateReturned, v
		}
	}
	r.push(f)
	return finished
}

func (r *run) tailCall(f *record) {
	r.log.Debug("flow: tail call", "flow", f.id.String(), "from", f.task.name, "to", f.next.name)
	f.co = nil
	f.task, f.next = f.next, Task{}
	f.state, f.value, f.err = stateUninitialized, nil, nil
	r.push(f)
}

func (r *run) resume(f *record, rep reply) {
	f.apply(f.co.send(rep))
}

func (r *run) dispatch(f *record) (bool, error) {
	switch req := f.req.(type) {
	case spawnRequest:
		child := r.spawn(f, req.task)
		r.push(child)
		r.resume(f, reply{id: child.id})
		r.push(f)
		return true, nil

	case *runRequest:
		if req.child == 0 {
			child := r.spawn(f, req.task)
			req.child = child.id
			r.push(child)
			r.push(f)
			return true, nil
		}
		o, ok := f.results[req.child]
		if !ok {
			r.push(f)
			return false, nil
		}
		delete(f.results, req.child)
		v, err := o.Unwrap()
		r.resume(f, reply{value: v, err: err})
		r.push(f)
		return true, nil

	case tillRequest, timeoutRequest, intervalRequest, signalRequest, signalForeverRequest, cronRequest:
		t, _ := combinator(req)
		f.req = &runRequest{task: t}
		r.push(f)
		return true, nil

	case getResultsRequest:
		if len(f.results) > 0 {
			res := f.results
			f.results = make(map[ID]Outcome)
			r.resume(f, reply{results: res})
			r.push(f)
			return true, nil
		}
		if len(f.children) == 0 {
			return false, inconsistent(f.id, nil, "get_results called without children")
		}
		r.push(f)
		return false, nil

	case cancelRemainingRequest:
		res := r.cancelChildren(f)
		r.resume(f, reply{results: res})
		r.push(f)
		return true, nil
	}
	return false, inconsistent(f.id, nil, "unknown request %T", f.req)
}

func (r *run) spawn(parent *record, t Task) *record {
	child := r.register(t, parent.id)
	parent.children[child.id] = struct{}{}
	r.log.Debug("flow: spawned", "flow", child.id.String(), "parent", parent.id.String(), "task", t.name)
	return child
}

// complete hands a terminal flow's outcome to its parent, or to the caller
// of Run for the root.
func (r *run) complete(f *record) error {
	if n := len(f.children); n > 0 {
		return inconsistent(f.id, f.err, "completed with %d unresolved children", n)
	}
	if n := len(f.results); n > 0 {
		return inconsistent(f.id, f.err, "completed with %d undrained child results", n)
	}
	o := f.outcome()
	f.dead = true
	delete(r.registry, f.id)
	if r.obs != nil {
		r.obs.FlowFinished(r.ctx, f.info(r.id), o, time.Since(f.started))
	}
	if f.parent != 0 {
		p, ok := r.registry[f.parent]
		if !ok {
			return inconsistent(f.id, f.err, "parent %s not found", f.parent)
		}
		delete(p.children, f.id)
		p.results[f.id] = o
		return nil
	}
	if n := len(r.registry); n > 0 {
		return inconsistent(f.id, f.err, "root completed with %d live flows", n)
	}
	r.final = &o
	return nil
}

// cancelChildren tears down every descendant of f and returns f's buffered
// outcomes plus a Cancelled marker for each direct child it removed.
func (r *run) cancelChildren(f *record) map[ID]Outcome {
	res := f.results
	f.results = make(map[ID]Outcome)
	for id := range f.children {
		if c, ok := r.registry[id]; ok {
			r.teardown(c)
		}
		res[id] = Outcome{Kind: Cancelled}
	}
	clear(f.children)
	return res
}

// teardown removes f and its subtree, deepest flows first. A suspended body
// is resumed with ErrCancelled so its deferred cleanup runs; a worker job is
// abandoned.
func (r *run) teardown(f *record) {
	for id := range f.children {
		if c, ok := r.registry[id]; ok {
			r.teardown(c)
		}
	}
	clear(f.children)
	if f.co != nil {
		f.co.close()
		f.co = nil
	}
	if f.job != nil {
		f.job.abandon()
		f.job = nil
	}
	f.dead = true
	delete(r.registry, f.id)
	r.log.Debug("flow: cancelled", "flow", f.id.String(), "task", f.task.name)
	if r.obs != nil && !f.started.IsZero() {
		r.obs.FlowCancelled(r.ctx, f.info(r.id))
	}
}

// teardownAll cancels whatever is left of the run.
func (r *run) teardownAll() {
	if root, ok := r.registry[r.root]; ok {
		r.teardown(root)
	}
	for _, f := range r.registry {
		r.teardown(f)
	}
	r.queue = nil
	r.s.live.Store(0)
	r.s.queued.Store(0)
}
