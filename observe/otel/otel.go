package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NetPo4ki/go-flow/flow"
)

const instrumentation = "github.com/NetPo4ki/go-flow/observe/otel"

type spanKey struct {
	run string
	id  flow.ID
}

// Tracer is a flow.Observer that records one span per flow.
type Tracer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[spanKey]trace.Span
}

var _ flow.Observer = (*Tracer)(nil)

// New returns a Tracer using tp, or the global provider when tp is nil.
func New(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer: tp.Tracer(instrumentation),
		spans:  make(map[spanKey]trace.Span),
	}
}

// FlowStarted opens the flow's span under its parent's span, or under the
// span in ctx for the root.
func (t *Tracer) FlowStarted(ctx context.Context, info flow.FlowInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if parent, ok := t.spans[spanKey{info.RunID, info.Parent}]; ok && info.Parent != 0 {
		ctx = trace.ContextWithSpan(ctx, parent)
	}
	_, span := t.tracer.Start(ctx, info.Name,
		trace.WithAttributes(
			attribute.String("flow.run_id", info.RunID),
			attribute.String("flow.id", info.ID.String()),
			attribute.String("flow.parent", info.Parent.String()),
			attribute.Bool("flow.blocking", info.Blocking),
		))
	t.spans[spanKey{info.RunID, info.ID}] = span
}

// FlowFinished ends the span, marking failures.
func (t *Tracer) FlowFinished(_ context.Context, info flow.FlowInfo, o flow.Outcome, _ time.Duration) {
	span := t.take(info)
	if span == nil {
		return
	}
	if o.Kind == flow.Error {
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, o.Err.Error())
	}
	span.End()
}

// FlowCancelled ends the span with a cancellation event.
func (t *Tracer) FlowCancelled(_ context.Context, info flow.FlowInfo) {
	span := t.take(info)
	if span == nil {
		return
	}
	span.AddEvent("cancelled")
	span.End()
}

// RunFinished drops spans the run left open.
func (t *Tracer) RunFinished(_ context.Context, runID string, _ time.Duration, _ error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, span := range t.spans {
		if k.run == runID {
			span.End()
			delete(t.spans, k)
		}
	}
}

func (t *Tracer) take(info flow.FlowInfo) trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := spanKey{info.RunID, info.ID}
	span := t.spans[k]
	delete(t.spans, k)
	return span
}

// open reports the number of spans not ended yet.
func (t *Tracer) open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Nop is an Observer that ignores every event. Embed it to implement only
// part of flow.Observer.
type Nop struct{}

var _ flow.Observer = Nop{}

func (Nop) FlowStarted(context.Context, flow.FlowInfo)                               {}
func (Nop) FlowFinished(context.Context, flow.FlowInfo, flow.Outcome, time.Duration) {}
func (Nop) FlowCancelled(context.Context, flow.FlowInfo)                             {}
func (Nop) RunFinished(context.Context, string, time.Duration, error)                {}
