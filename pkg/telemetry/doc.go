// Package telemetry wires OpenTelemetry tracing and metrics for pipeline runs.
//
// It centralises trace provider setup, records per-node and per-run metric
// instruments, and offers helpers that annotate spans with retry and outcome
// events while keeping secret-looking configuration values out of exports.
package telemetry
