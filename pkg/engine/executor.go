package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/polisai/polis-dag/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "polis.pipeline"

// Executor runs pipeline definitions against a runner registry. One executor
// serves any number of concurrent runs; every run owns its ExecutionContext.
type Executor struct {
	registry    *Registry
	logger      *slog.Logger
	defaults    atomic.Pointer[NodeDefaults]
	parallelism int
	now         func() time.Time
}

// ExecutorConfig holds dependencies for creating an Executor.
type ExecutorConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	// Defaults apply to nodes that do not set timeoutMs, retries or
	// retryDelayMs. Zero fields fall back to DefaultNodeDefaults.
	Defaults NodeDefaults
	// Parallelism above 1 runs the ready nodes of each dependency level
	// concurrently, at most Parallelism at a time.
	Parallelism int
	// Clock overrides time.Now for log timestamps and durations.
	Clock func() time.Time
}

// RunRequest is one invocation of a pipeline.
type RunRequest struct {
	Definition *domain.PipelineDefinition
	// Input is the initial input. Nil means the run has none.
	Input any
	// InputNode overrides the definition's input binding for this run.
	InputNode string
	// OnLog receives every log line as it is written.
	OnLog func(string)
}

// RunResult is what a run produced. It is returned on failure too, carrying
// the log and the artifacts of the nodes that completed.
type RunResult struct {
	// Output is the single sink's output, or a map of sink id to output
	// when the graph has several sinks. Nil when the run failed.
	Output any
	// Sinks maps every completed sink to its output.
	Sinks map[string]any
	// Last is the output of the last node in execution order.
	Last      any
	Order     []string
	Log       []string
	Artifacts map[string]any
	Duration  time.Duration
}

// runState is the per-run view shared by the node executions of one run.
type runState struct {
	def     *domain.PipelineDefinition
	graph   *graph
	exec    *ExecutionContext
	binding inputBinding
}

// NewExecutor creates an executor. A nil registry is replaced with an empty one.
func NewExecutor(cfg ExecutorConfig) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	e := &Executor{
		registry:    registry,
		logger:      logger,
		parallelism: parallelism,
		now:         now,
	}
	e.SetDefaults(cfg.Defaults)
	return e
}

// Registry returns the registry the executor dispatches to.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Defaults returns the node defaults currently in effect.
func (e *Executor) Defaults() NodeDefaults {
	return *e.defaults.Load()
}

// SetDefaults swaps the node defaults used by runs that start afterwards.
func (e *Executor) SetDefaults(defaults NodeDefaults) {
	d := defaults.withFallbacks()
	e.defaults.Store(&d)
}

// Run executes the definition once. Nodes run in topological order; a node
// failure that survives its retries aborts the run.
func (e *Executor) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	start := e.now()
	exec := newExecutionContext(req.OnLog, e.now)
	result := &RunResult{}

	def := req.Definition
	if def == nil {
		return result, &domain.InvalidDefinitionError{Reason: "definition is required"}
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipeline.name", def.Name),
		attribute.Int("pipeline.nodes", len(def.Nodes)),
		attribute.Int("pipeline.parallelism", e.parallelism),
	))
	defer span.End()

	e.logger.Info("executing pipeline",
		"pipeline", def.Name,
		"nodes", len(def.Nodes),
		"edges", len(def.Edges),
		"parallelism", e.parallelism,
	)

	runErr := e.run(ctx, def, req, exec, result)

	result.Log = exec.Lines()
	result.Artifacts = exec.Artifacts()
	result.Sinks = collectSinks(def, exec)
	if n := len(result.Order); n > 0 {
		result.Last = result.Artifacts[result.Order[n-1]]
	}
	if runErr == nil {
		result.Output = sinkOutput(def, result.Sinks)
	}
	result.Duration = e.now().Sub(start)

	status := domain.RunSucceeded
	if runErr != nil {
		status = domain.RunFailed
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		e.logger.Error("pipeline run failed",
			"pipeline", def.Name,
			"error", runErr,
			"duration_ms", result.Duration.Milliseconds(),
		)
	} else {
		e.logger.Info("pipeline execution complete",
			"pipeline", def.Name,
			"duration_ms", result.Duration.Milliseconds(),
		)
	}

	telemetry.RecordRunOutcome(span, string(status), len(result.Artifacts), len(result.Sinks))
	telemetry.RecordRunMetrics(ctx, telemetry.RunMetrics{
		Pipeline: def.Name,
		Status:   string(status),
		Nodes:    len(result.Artifacts),
		Duration: result.Duration,
	})

	return result, runErr
}

func (e *Executor) run(ctx context.Context, def *domain.PipelineDefinition, req RunRequest, exec *ExecutionContext, result *RunResult) error {
	if err := def.Validate(); err != nil {
		return err
	}

	g := newGraph(def)
	order, err := g.sort()
	if err != nil {
		return err
	}
	result.Order = order

	binding, err := bindInput(def, order, req)
	if err != nil {
		return err
	}

	st := &runState{def: def, graph: g, exec: exec, binding: binding}

	if e.parallelism <= 1 {
		for _, id := range order {
			if err := e.runNode(ctx, st, id); err != nil {
				return err
			}
		}
		return nil
	}

	waves, err := g.waves()
	if err != nil {
		return err
	}
	for _, wave := range waves {
		if err := e.runWave(ctx, st, wave); err != nil {
			return err
		}
	}
	return nil
}

// runWave runs the nodes of one dependency level concurrently and joins them
// before the next level starts. The first failure cancels its siblings.
func (e *Executor) runWave(ctx context.Context, st *runState, wave []string) error {
	if len(wave) == 1 {
		return e.runNode(ctx, st, wave[0])
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.parallelism)
	for _, id := range wave {
		group.Go(func() error {
			return e.runNode(groupCtx, st, id)
		})
	}
	return group.Wait()
}

// sinkOutput is the single sink's output, or the whole map otherwise.
func sinkOutput(def *domain.PipelineDefinition, sinks map[string]any) any {
	ids := def.Sinks()
	if len(ids) == 1 {
		return sinks[ids[0]]
	}
	return sinks
}
