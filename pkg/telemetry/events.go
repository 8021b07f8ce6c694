package telemetry

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordRetryEvent attaches a retry event to the node span.
func RecordRetryEvent(span trace.Span, attempt int, delay time.Duration, err error) {
	if span == nil || !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int("retry.failed_attempt", attempt),
		attribute.Int64("retry.delay_ms", delay.Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("retry.error", err.Error()))
	}

	span.AddEvent("node.retry", trace.WithAttributes(attrs...))
}

// RecordRunOutcome annotates the run span with the terminal status.
func RecordRunOutcome(span trace.Span, status string, nodesRun int, resultSinks int) {
	if span == nil || !span.IsRecording() {
		return
	}

	span.SetAttributes(
		attribute.String("run.status", status),
		attribute.Int("run.nodes_completed", nodesRun),
		attribute.Int("run.sinks", resultSinks),
	)
}
