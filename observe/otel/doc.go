// Package otel traces flows with OpenTelemetry. Every flow becomes a span
// parented to the span of the flow that spawned it; cancelled flows end with
// a "cancelled" event and failed ones with an error status.
package otel
