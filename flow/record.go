package flow

import "time"

type reqState int

const (
	stateUninitialized reqState = iota
	stateRunning                // handed to the worker pool
	stateYielded
	stateReturned
	stateRaised
	stateTailCalled
)

var stateNames = [...]string{"uninitialized", "running", "yielded", "returned", "raised", "tail-called"}

func (s reqState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// record is the scheduler's bookkeeping for one flow. Only the scheduler
// goroutine touches it.
type record struct {
	id     ID
	parent ID
	task   Task

	// Once initialized exactly one of co and job is set, until the job
	// finishes or the coroutine is replaced by a tail call.
	co  *coroutine
	job *job

	state reqState
	req   request
	value any
	err   error
	next  Task

	// children holds the live flows whose parent is id; results holds
	// outcomes of finished children not consumed yet.
	children map[ID]struct{}
	results  map[ID]Outcome

	started time.Time
	dead    bool
}

func newRecord(id, parent ID, t Task) *record {
	return &record{
		id:       id,
		parent:   parent,
		task:     t,
		children: make(map[ID]struct{}),
		results:  make(map[ID]Outcome),
	}
}

func (f *record) outcome() Outcome {
	if f.state == stateRaised {
		return ErrorOf(f.err)
	}
	return ValueOf(f.value)
}

func (f *record) info(runID string) FlowInfo {
	return FlowInfo{
		RunID:    runID,
		ID:       f.id,
		Parent:   f.parent,
		Name:     f.task.name,
		Blocking: f.task.IsBlocking(),
	}
}

// apply adopts the step a coroutine just produced.
func (f *record) apply(st step) {
	if !st.done {
		f.state, f.req = stateYielded, st.req
		return
	}
	f.req = nil
	switch st.res.kind {
	case resultRaise:
		f.state, f.err = stateRaised, st.res.err
	case resultTailCall:
		f.state, f.next = stateTailCalled, st.res.next
	default:
		f.state, f.value = stateReturned, st.res.value
	}
}
