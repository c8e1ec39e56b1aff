package flow

import (
	"context"
	"log/slog"
	"time"
)

type Option func(*Options)

type Options struct {
	// MaxWorkers bounds the blocking tasks running at once.
	MaxWorkers int
	// PanicAsError returns a root panic as a *PanicError instead of
	// re-panicking in the caller of Run.
	PanicAsError bool
	Observer     Observer
	Logger       *slog.Logger
}

func defaultOptions() Options {
	return Options{MaxWorkers: defaultMaxWorkers(), PanicAsError: true}
}

func WithMaxWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxWorkers = n
		}
	}
}

func WithPanicAsError(v bool) Option { return func(o *Options) { o.PanicAsError = v } }

func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }

// FlowInfo identifies a flow to an [Observer].
type FlowInfo struct {
	RunID    string
	ID       ID
	Parent   ID
	Name     string
	Blocking bool
}

// Observer receives lifecycle events from the scheduler goroutine. Methods
// must not block.
//
// FlowStarted fires once per flow, tail calls included. Every started flow
// is later reported exactly once to FlowFinished or FlowCancelled.
type Observer interface {
	FlowStarted(ctx context.Context, info FlowInfo)
	FlowFinished(ctx context.Context, info FlowInfo, o Outcome, dur time.Duration)
	FlowCancelled(ctx context.Context, info FlowInfo)
	RunFinished(ctx context.Context, runID string, dur time.Duration, err error)
}

// Observers fans every event out to obs in order. Nil entries are skipped.
func Observers(obs ...Observer) Observer {
	out := make(tee, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type tee []Observer

func (t tee) FlowStarted(ctx context.Context, info FlowInfo) {
	for _, o := range t {
		o.FlowStarted(ctx, info)
	}
}

func (t tee) FlowFinished(ctx context.Context, info FlowInfo, oc Outcome, dur time.Duration) {
	for _, o := range t {
		o.FlowFinished(ctx, info, oc, dur)
	}
}

func (t tee) FlowCancelled(ctx context.Context, info FlowInfo) {
	for _, o := range t {
		o.FlowCancelled(ctx, info)
	}
}

func (t tee) RunFinished(ctx context.Context, runID string, dur time.Duration, err error) {
	for _, o := range t {
		o.RunFinished(ctx, runID, dur, err)
	}
}
