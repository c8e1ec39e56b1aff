package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/goleak"

	"github.com/NetPo4ki/go-flow/flow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recSpan struct {
	noop.Span
	name   string
	parent *recSpan
	ended  bool
	events []string
	status codes.Code
}

func (s *recSpan) End(...trace.SpanEndOption)                   { s.ended = true }
func (s *recSpan) AddEvent(name string, _ ...trace.EventOption) { s.events = append(s.events, name) }
func (s *recSpan) SetStatus(c codes.Code, _ string)             { s.status = c }

type recTracer struct {
	noop.Tracer
	spans *[]*recSpan
}

func (t recTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := &recSpan{name: name}
	if p, ok := trace.SpanFromContext(ctx).(*recSpan); ok {
		s.parent = p
	}
	*t.spans = append(*t.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

type recProvider struct {
	noop.TracerProvider
	spans []*recSpan
}

func (p *recProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return recTracer{spans: &p.spans}
}

func (p *recProvider) byName(name string) *recSpan {
	for _, s := range p.spans {
		if s.name == name {
			return s
		}
	}
	return nil
}

func TestTracerBuildsSpanTree(t *testing.T) {
	tp := &recProvider{}
	tr := New(tp)
	boom := errors.New("boom")

	_, err := flow.Run(context.Background(), flow.Coop(func(co *flow.Co) flow.Result {
		_, err := co.TillAny(
			flow.Blocking(func(context.Context, ...any) (any, error) { return nil, boom }).Named("fails"),
			flow.Sleep(time.Hour).Named("sleeps"),
		)
		return co.Raise(err)
	}).Named("root"), flow.WithObserver(tr))
	require.NoError(t, err)

	root, till, fails, sleeps := tp.byName("root"), tp.byName("till"), tp.byName("fails"), tp.byName("sleeps")
	require.NotNil(t, root)
	require.NotNil(t, till)
	require.NotNil(t, fails)
	require.NotNil(t, sleeps)

	assert.Nil(t, root.parent)
	assert.Same(t, root, till.parent)
	assert.Same(t, till, fails.parent)
	assert.Same(t, till, sleeps.parent)

	assert.Equal(t, codes.Error, fails.status)
	assert.Equal(t, []string{"cancelled"}, sleeps.events)
	for _, s := range tp.spans {
		assert.True(t, s.ended, s.name)
	}
	assert.Zero(t, tr.open())
}

func TestTracerEndsSpansOfAbortedRun(t *testing.T) {
	tp := &recProvider{}
	tr := New(tp)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := flow.Run(ctx, flow.Coop(func(co *flow.Co) flow.Result {
		return co.Done(co.Run(flow.Sleep(time.Hour)))
	}), flow.WithObserver(tr))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, tr.open())
	for _, s := range tp.spans {
		assert.True(t, s.ended, s.name)
	}
}

func TestNopIsAnObserver(t *testing.T) {
	v, err := flow.Run(context.Background(), flow.Coop(func(co *flow.Co) flow.Result {
		return co.Return("ok")
	}), flow.WithObserver(Nop{}))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
