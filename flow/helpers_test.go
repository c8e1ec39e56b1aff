package flow_test

import (
	"context"
	"testing"
	"time"

	"github.com/NetPo4ki/go-flow/flow"
)

// recorder is an Observer that keeps every event. The scheduler calls it
// from the goroutine running Run, so tests read it after Run returns.
type recorder struct {
	started   []flow.FlowInfo
	finished  []flow.Outcome
	cancelled []flow.FlowInfo
	runs      int
	runErr    error
}

func (r *recorder) FlowStarted(_ context.Context, info flow.FlowInfo) {
	r.started = append(r.started, info)
}

func (r *recorder) FlowFinished(_ context.Context, _ flow.FlowInfo, o flow.Outcome, _ time.Duration) {
	r.finished = append(r.finished, o)
}

func (r *recorder) FlowCancelled(_ context.Context, info flow.FlowInfo) {
	r.cancelled = append(r.cancelled, info)
}

func (r *recorder) RunFinished(_ context.Context, _ string, _ time.Duration, err error) {
	r.runs++
	r.runErr = err
}

func newScheduler(t *testing.T, opts ...flow.Option) *flow.Scheduler {
	t.Helper()
	s := flow.New(opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func returning(v any) flow.Task {
	return flow.Coop(func(co *flow.Co) flow.Result { return co.Return(v) })
}

func sleepThenReturn(d time.Duration, v any) flow.Task {
	return flow.Blocking(func(ctx context.Context, args ...any) (any, error) {
		select {
		case <-time.After(args[0].(time.Duration)):
			return args[1], nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, d, v).Named("sleep_then_return")
}

func blockUntilCancelled(started chan<- struct{}) flow.Task {
	return flow.Blocking(func(ctx context.Context, _ ...any) (any, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func ids(m map[flow.ID]flow.Outcome) []flow.ID {
	out := make([]flow.ID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}
