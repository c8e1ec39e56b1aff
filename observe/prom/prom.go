// Package prom exports scheduler activity as Prometheus metrics.
package prom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NetPo4ki/go-flow/flow"
)

const namespace = "flow"

// Metrics is a flow.Observer backed by Prometheus collectors.
type Metrics struct {
	active    prometheus.Gauge
	started   *prometheus.CounterVec
	finished  *prometheus.CounterVec
	cancelled prometheus.Counter
	flowDur   *prometheus.HistogramVec
	runs      *prometheus.CounterVec
	runDur    prometheus.Histogram
}

var _ flow.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_flows",
			Help:      "Flows started and not yet finished or cancelled.",
		}),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_started_total",
			Help:      "Flows started, by kind.",
		}, []string{"kind"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_finished_total",
			Help:      "Flows that delivered an outcome, by outcome.",
		}, []string{"outcome"}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_cancelled_total",
			Help:      "Flows torn down before finishing.",
		}),
		flowDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "Time from a flow's start to its outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Scheduler runs, by result.",
		}, []string{"result"}),
		runDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of scheduler runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.active, m.started, m.finished, m.cancelled, m.flowDur, m.runs, m.runDur)
	}
	return m
}

func kind(info flow.FlowInfo) string {
	if info.Blocking {
		return "blocking"
	}
	return "coop"
}

// FlowStarted increments active and started counters.
func (m *Metrics) FlowStarted(_ context.Context, info flow.FlowInfo) {
	m.active.Inc()
	m.started.WithLabelValues(kind(info)).Inc()
}

// FlowFinished records the outcome and the flow's duration.
func (m *Metrics) FlowFinished(_ context.Context, info flow.FlowInfo, o flow.Outcome, dur time.Duration) {
	m.active.Dec()
	outcome := "value"
	if o.Kind == flow.Error {
		outcome = "error"
	}
	m.finished.WithLabelValues(outcome).Inc()
	m.flowDur.WithLabelValues(kind(info)).Observe(dur.Seconds())
}

// FlowCancelled records a teardown.
func (m *Metrics) FlowCancelled(_ context.Context, _ flow.FlowInfo) {
	m.active.Dec()
	m.cancelled.Inc()
}

// RunFinished records a run and its wall time.
func (m *Metrics) RunFinished(_ context.Context, _ string, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(result).Inc()
	m.runDur.Observe(dur.Seconds())
}
