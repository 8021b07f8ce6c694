package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/polisai/polis-dag/pkg/engine/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "polis.pipeline"

var (
	metricsOnce          sync.Once
	metricsInitErr       error
	nodeExecutionCounter metric.Int64Counter
	nodeRetryCounter     metric.Int64Counter
	nodeTimeoutCounter   metric.Int64Counter
	nodeLatencyHistogram metric.Float64Histogram
	runCounter           metric.Int64Counter
	runLatencyHistogram  metric.Float64Histogram
)

// NodeMetrics captures the fields needed to record node execution metrics.
type NodeMetrics struct {
	Pipeline string
	NodeID   string
	NodeType string
	Outcome  runtime.NodeOutcome
	Duration time.Duration
	Attempts int
}

// RunMetrics captures the fields needed to record run metrics.
type RunMetrics struct {
	Pipeline string
	Status   string
	Nodes    int
	Duration time.Duration
}

// RecordNodeMetrics emits counters and histograms that describe node execution behaviour.
func RecordNodeMetrics(ctx context.Context, m NodeMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("pipeline.name", m.Pipeline),
		attribute.String("node.id", m.NodeID),
		attribute.String("node.type", m.NodeType),
		attribute.String("node.outcome", string(m.Outcome)),
	)

	nodeExecutionCounter.Add(ctx, 1, attrs)

	if m.Duration > 0 {
		nodeLatencyHistogram.Record(ctx, float64(m.Duration)/float64(time.Millisecond), attrs)
	}

	if m.Attempts > 1 {
		nodeRetryCounter.Add(ctx, int64(m.Attempts-1), attrs)
	}

	if m.Outcome == runtime.OutcomeTimeout {
		nodeTimeoutCounter.Add(ctx, 1, attrs)
	}
}

// RecordRunMetrics emits the run counter and latency histogram.
func RecordRunMetrics(ctx context.Context, m RunMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("pipeline.name", m.Pipeline),
		attribute.String("run.status", m.Status),
	)
	runCounter.Add(ctx, 1, attrs)
	if m.Duration > 0 {
		runLatencyHistogram.Record(ctx, float64(m.Duration)/float64(time.Millisecond), attrs)
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(meterName)

		nodeExecutionCounter, metricsInitErr = meter.Int64Counter(
			"pipeline.node.executions_total",
			metric.WithDescription("Pipeline node executions partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		nodeRetryCounter, metricsInitErr = meter.Int64Counter(
			"pipeline.node.retries_total",
			metric.WithDescription("Retry attempts performed by pipeline nodes"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		nodeTimeoutCounter, metricsInitErr = meter.Int64Counter(
			"pipeline.node.timeout_total",
			metric.WithDescription("Nodes whose last attempt timed out"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		nodeLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"pipeline.node.duration_ms",
			metric.WithDescription("Observed node execution latency including retries"),
			metric.WithUnit("ms"),
		)
		if metricsInitErr != nil {
			return
		}

		runCounter, metricsInitErr = meter.Int64Counter(
			"pipeline.runs_total",
			metric.WithDescription("Pipeline runs partitioned by terminal status"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		runLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"pipeline.run.duration_ms",
			metric.WithDescription("Observed end-to-end run latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
