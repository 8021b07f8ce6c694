package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/polisai/polis-dag/internal/governance"
	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
	"github.com/polisai/polis-dag/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// runNode resolves, configures and executes one node, storing its output in
// the run's artifacts. Failures are logged as node:error entries.
func (e *Executor) runNode(ctx context.Context, st *runState, nodeID string) (err error) {
	node := st.graph.nodes[nodeID]
	defer func() {
		if err != nil {
			st.exec.Log(fmt.Sprintf("node:error:%s:%s", node.ID, err.Error()))
		}
	}()

	spec, err := e.registry.Resolve(node.Type)
	if err != nil {
		telemetry.RecordNodeMetrics(ctx, telemetry.NodeMetrics{
			Pipeline: st.def.Name,
			NodeID:   node.ID,
			NodeType: node.Type,
			Outcome:  runtime.OutcomeRejected,
		})
		return &domain.UnknownNodeTypeError{Type: node.Type, NodeID: node.ID}
	}

	st.exec.Log("node:start:" + node.ID)
	start := e.now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.node", trace.WithAttributes(
		attribute.String("node.id", node.ID),
		attribute.String("node.type", node.Type),
		attribute.String("node.canonical", spec.Type),
	))
	defer span.End()
	if span.IsRecording() {
		span.SetAttributes(telemetry.ConfigAttributes(telemetry.DefaultRedactionPolicy(), node.Config)...)
	}

	output, attempts, err := e.executeWithGovernance(ctx, st, node, spec)
	duration := e.now().Sub(start)
	outcome := classifyError(err)

	span.SetAttributes(
		attribute.String("node.outcome", string(outcome)),
		attribute.Int64("node.duration_ms", duration.Milliseconds()),
		attribute.Int("node.attempts", attempts),
	)
	telemetry.RecordNodeMetrics(ctx, telemetry.NodeMetrics{
		Pipeline: st.def.Name,
		NodeID:   node.ID,
		NodeType: spec.Type,
		Outcome:  outcome,
		Duration: duration,
		Attempts: attempts,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("node execution failed",
			"pipeline", st.def.Name,
			"node_id", node.ID,
			"node_type", node.Type,
			"attempts", attempts,
			"error", err,
		)
		return err
	}

	st.exec.setArtifact(node.ID, output)
	st.exec.Log(fmt.Sprintf("node:end:%s:%dms", node.ID, duration.Milliseconds()))
	e.logger.Debug("node completed",
		"pipeline", st.def.Name,
		"node_id", node.ID,
		"duration_ms", duration.Milliseconds(),
		"attempts", attempts,
	)
	return nil
}

// executeWithGovernance applies the node's settings and config schema, then
// runs the attempts under the timeout and retry policy. It returns the number
// of attempts made.
func (e *Executor) executeWithGovernance(ctx context.Context, st *runState, node domain.NodeDefinition, spec RunnerSpec) (any, int, error) {
	settings, err := ResolveSettings(node, e.Defaults())
	if err != nil {
		return nil, 0, err
	}

	cfg := runtime.Config(node.Config)
	if err := spec.Schema.Validate(cfg); err != nil {
		return nil, 0, &domain.ConfigValidationError{NodeID: node.ID, Err: err}
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int64("governance.timeout_ms", settings.Timeout.Milliseconds()),
		attribute.Int("governance.retry.max_attempts", settings.Attempts),
	)

	input := resolveInput(st.graph, st.exec, st.binding, node.ID)
	rc := nodeRunContext{exec: st.exec, nodeID: node.ID}

	policy := governance.NewRetryPolicy(governance.RetryConfig{
		MaxAttempts: settings.Attempts,
		Delay:       settings.RetryDelay,
		Retryable:   domain.IsRetryable,
	})

	attemptFn := func(ctx context.Context, _ int) (any, error) {
		out, err := governance.RunWithTimeout(ctx, settings.Timeout, func(attemptCtx context.Context) (any, error) {
			return spec.Runner.Execute(attemptCtx, input, cfg, rc)
		})
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, governance.ErrAttemptTimeout):
			return nil, &domain.NodeTimeoutError{NodeID: node.ID, Timeout: settings.Timeout}
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, &domain.NodeExecutionError{NodeID: node.ID, Err: err}
		}
	}

	onRetry := func(a governance.Attempt) {
		st.exec.Log(fmt.Sprintf("node:retry:%s:%d", node.ID, a.Number))
		telemetry.RecordRetryEvent(span, a.Number, a.Delay, a.Err)
		e.logger.Warn("retrying node",
			"pipeline", st.def.Name,
			"node_id", node.ID,
			"failed_attempt", a.Number,
			"max_attempts", settings.Attempts,
			"delay_ms", a.Delay.Milliseconds(),
			"error", a.Err,
		)
	}

	return governance.ExecuteWithRetry(ctx, policy, attemptFn, onRetry)
}

func classifyError(err error) runtime.NodeOutcome {
	switch {
	case err == nil:
		return runtime.OutcomeSuccess
	case errors.Is(err, domain.ErrNodeTimeout):
		return runtime.OutcomeTimeout
	case errors.Is(err, domain.ErrUnknownNodeType), errors.Is(err, domain.ErrConfigInvalid):
		return runtime.OutcomeRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return runtime.OutcomeCancelled
	default:
		return runtime.OutcomeFailure
	}
}

