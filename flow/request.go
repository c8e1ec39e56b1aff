package flow

import (
	"os"
	"time"

	cron "github.com/netresearch/go-cron"
)

// request is what a suspended cooperative body asks the scheduler for.
type request interface {
	requestName() string
}

type spawnRequest struct{ task Task }

// runRequest remembers the child it spawned so that only that child's
// outcome answers it.
type runRequest struct {
	task  Task
	child ID
}

type getResultsRequest struct{}

type cancelRemainingRequest struct{}

type tillRequest struct {
	pred  func([]Outcome) bool
	tasks []Task
}

type timeoutRequest struct {
	delay time.Duration
	task  Task
}

type intervalRequest struct {
	period time.Duration
	task   Task
}

type signalRequest struct {
	sig  os.Signal
	task Task
}

type signalForeverRequest struct {
	sig  os.Signal
	task Task
}

type cronRequest struct {
	spec     string
	schedule cron.Schedule
	task     Task
}

func (spawnRequest) requestName() string           { return "spawn" }
func (*runRequest) requestName() string            { return "run" }
func (getResultsRequest) requestName() string      { return "get_results" }
func (cancelRemainingRequest) requestName() string { return "cancel_remaining" }
func (tillRequest) requestName() string            { return "till" }
func (timeoutRequest) requestName() string         { return "on_timeout" }
func (intervalRequest) requestName() string        { return "on_interval" }
func (signalRequest) requestName() string          { return "on_signal" }
func (signalForeverRequest) requestName() string   { return "on_signal_forever" }
func (cronRequest) requestName() string            { return "on_cron" }

// combinator rewrites a derived request into the cooperative task that
// implements it. ok is false for the primitive requests.
func combinator(req request) (t Task, ok bool) {
	switch r := req.(type) {
	case tillRequest:
		return Coop(till(r.pred, r.tasks)).Named("till"), true
	case timeoutRequest:
		return Coop(onTimeout(r.delay, r.task)).Named("on_timeout"), true
	case intervalRequest:
		return Coop(onInterval(r.period, r.task)).Named("on_interval"), true
	case signalRequest:
		return Coop(onSignal(r.sig, r.task, false)).Named("on_signal"), true
	case signalForeverRequest:
		return Coop(onSignal(r.sig, r.task, true)).Named("on_signal_forever"), true
	case cronRequest:
		return Coop(onCron(r.schedule, r.task)).Named("on_cron " + r.spec), true
	default:
		return Task{}, false
	}
}

// reply is the scheduler's answer to a request.
type reply struct {
	id      ID
	value   any
	err     error
	results map[ID]Outcome
	closing bool
}
