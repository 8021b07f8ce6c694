package runners

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
	"github.com/polisai/polis-dag/pkg/policy"
)

const (
	policyModeGate     = "gate"
	policyModeDecision = "decision"
)

var policySchema = runtime.MustSchema(runtime.Object(map[string]*jsonschema.Schema{
	"module":     runtime.StringProp("Rego module source"),
	"entrypoint": runtime.StringProp("decision path, e.g. pipeline/allow"),
	"mode":       runtime.EnumProp("gate passes the input through when allowed; decision returns the decision", policyModeGate, policyModeDecision),
}, "module"))

// PolicyRunner evaluates a Rego module against the node input. Engines are
// built once per (module, entrypoint) pair and reused across runs.
type PolicyRunner struct {
	logger  *slog.Logger
	mu      sync.Mutex
	engines map[string]*policy.Engine
}

// NewPolicyRunner creates a PolicyRunner.
func NewPolicyRunner(logger *slog.Logger) *PolicyRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyRunner{logger: logger, engines: make(map[string]*policy.Engine)}
}

func (r *PolicyRunner) engine(ctx context.Context, module, entrypoint string) (*policy.Engine, error) {
	sum := sha256.Sum256([]byte(entrypoint + "\x00" + module))
	key := hex.EncodeToString(sum[:])

	r.mu.Lock()
	defer r.mu.Unlock()
	if engine, ok := r.engines[key]; ok {
		return engine, nil
	}

	engine, err := policy.NewEngine(ctx, policy.EngineOptions{
		Entrypoint: entrypoint,
		Modules:    map[string]string{"node.rego": module},
	})
	if err != nil {
		return nil, err
	}
	r.engines[key] = engine
	return engine, nil
}

func (r *PolicyRunner) Execute(ctx context.Context, input any, cfg runtime.Config, rc runtime.RunContext) (any, error) {
	engine, err := r.engine(ctx, cfg.String("module", ""), cfg.String("entrypoint", ""))
	if err != nil {
		return nil, fmt.Errorf("policy.opa: %w", err)
	}

	value, err := toJSONValue(input)
	if err != nil {
		return nil, fmt.Errorf("policy.opa: %w", err)
	}

	decision, err := engine.Evaluate(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("policy.opa: %w", err)
	}

	r.logger.Debug("policy evaluated",
		"node_id", rc.NodeID(),
		"entrypoint", engine.Entrypoint(),
		"allow", decision.Allow,
	)

	if cfg.String("mode", policyModeGate) == policyModeDecision {
		return decision, nil
	}
	if !decision.Allow {
		rc.Log(fmt.Sprintf("policy:deny:%s", rc.NodeID()))
		if decision.Reason != "" {
			return nil, fmt.Errorf("%w: %s", policy.ErrDenied, decision.Reason)
		}
		return nil, policy.ErrDenied
	}
	return input, nil
}
