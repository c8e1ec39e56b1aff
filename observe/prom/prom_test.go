package prom_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/NetPo4ki/go-flow/flow"
	"github.com/NetPo4ki/go-flow/observe/prom"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMetricsCountFlows(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := prom.New(reg)

	boom := errors.New("boom")
	_, err := flow.Run(context.Background(), flow.Coop(func(co *flow.Co) flow.Result {
		out, err := co.TillAll(
			flow.Blocking(func(context.Context, ...any) (any, error) { return 1, nil }),
			flow.Blocking(func(context.Context, ...any) (any, error) { return nil, boom }),
		)
		if err != nil {
			return co.Raise(err)
		}
		return co.Return(out)
	}), flow.WithObserver(m))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// root, till and two blocking children
	const want = `
# HELP flow_flows_started_total Flows started, by kind.
# TYPE flow_flows_started_total counter
flow_flows_started_total{kind="blocking"} 2
flow_flows_started_total{kind="coop"} 2
# HELP flow_flows_finished_total Flows that delivered an outcome, by outcome.
# TYPE flow_flows_finished_total counter
flow_flows_finished_total{outcome="error"} 1
flow_flows_finished_total{outcome="value"} 3
# HELP flow_active_flows Flows started and not yet finished or cancelled.
# TYPE flow_active_flows gauge
flow_active_flows 0
# HELP flow_runs_total Scheduler runs, by result.
# TYPE flow_runs_total counter
flow_runs_total{result="ok"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"flow_flows_started_total", "flow_flows_finished_total", "flow_active_flows", "flow_runs_total"); err != nil {
		t.Fatal(err)
	}
	n, err := testutil.GatherAndCount(reg, "flow_flow_duration_seconds")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected duration series for both kinds, got %d", n)
	}
}

func TestMetricsCountCancellations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := prom.New(reg)
	_, err := flow.Run(context.Background(), flow.Coop(func(co *flow.Co) flow.Result {
		return co.Done(co.TillAny(
			flow.Sleep(0),
			flow.Blocking(func(ctx context.Context, _ ...any) (any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}),
		))
	}), flow.WithObserver(m))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	const want = `
# HELP flow_flows_cancelled_total Flows torn down before finishing.
# TYPE flow_flows_cancelled_total counter
flow_flows_cancelled_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "flow_flows_cancelled_total"); err != nil {
		t.Fatal(err)
	}
}
