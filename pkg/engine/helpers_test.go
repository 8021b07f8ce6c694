package engine

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
)

func newTestExecutor(reg *Registry, parallelism int) *Executor {
	return NewExecutor(ExecutorConfig{
		Registry:    reg,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Defaults:    NodeDefaults{RetryDelay: time.Millisecond},
		Parallelism: parallelism,
	})
}

// spyRunner counts invocations and returns a fixed output.
type spyRunner struct {
	calls  atomic.Int32
	output any
}

func (s *spyRunner) Execute(context.Context, any, runtime.Config, runtime.RunContext) (any, error) {
	s.calls.Add(1)
	return s.output, nil
}

func constRunner(v any) runtime.RunnerFunc {
	return func(context.Context, any, runtime.Config, runtime.RunContext) (any, error) {
		return v, nil
	}
}

func echoRunner() runtime.RunnerFunc {
	return func(_ context.Context, input any, _ runtime.Config, _ runtime.RunContext) (any, error) {
		return input, nil
	}
}

func sleepRunner(d time.Duration) runtime.RunnerFunc {
	return func(context.Context, any, runtime.Config, runtime.RunContext) (any, error) {
		time.Sleep(d)
		return "late", nil
	}
}

func node(id, typ string, cfg map[string]any) domain.NodeDefinition {
	return domain.NodeDefinition{ID: id, Type: typ, Config: cfg}
}

func edge(from, to string) domain.Edge {
	return domain.Edge{From: from, To: to}
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}
