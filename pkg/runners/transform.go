package runners

import (
	"context"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/itchyny/gojq"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
)

var (
	jqSchema = runtime.MustSchema(runtime.Object(map[string]*jsonschema.Schema{
		"query": runtime.StringProp("jq query applied to the input"),
		"all": {
			Type:        "boolean",
			Description: "always return every emitted value as a list",
		},
	}, "query"))
	exprSchema = runtime.MustSchema(runtime.Object(map[string]*jsonschema.Schema{
		"expression": runtime.StringProp("expr-lang expression; the input is bound to `input`"),
		"vars":       {Type: "object", Description: "extra variables visible to the expression"},
	}, "expression"))
)

// JQRunner applies a jq query. Compiled queries are cached by source.
type JQRunner struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewJQRunner creates a JQRunner.
func NewJQRunner() *JQRunner {
	return &JQRunner{cache: make(map[string]*gojq.Code)}
}

func (r *JQRunner) compile(src string) (*gojq.Code, error) {
	r.mu.RLock()
	code, ok := r.cache[src]
	r.mu.RUnlock()
	if ok {
		return code, nil
	}

	query, err := gojq.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("transform.jq: parse: %w", err)
	}
	code, err = gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("transform.jq: compile: %w", err)
	}

	r.mu.Lock()
	r.cache[src] = code
	r.mu.Unlock()
	return code, nil
}

// Execute returns the single emitted value, nil when nothing is emitted, or
// a list when the query emits several values (or config.all is set).
func (r *JQRunner) Execute(ctx context.Context, input any, cfg runtime.Config, _ runtime.RunContext) (any, error) {
	code, err := r.compile(cfg.String("query", "."))
	if err != nil {
		return nil, err
	}
	value, err := toJSONValue(input)
	if err != nil {
		return nil, fmt.Errorf("transform.jq: %w", err)
	}

	results := []any{}
	iter := code.RunWithContext(ctx, value)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			if haltErr, halted := err.(*gojq.HaltError); halted && haltErr.Value() == nil {
				break
			}
			return nil, fmt.Errorf("transform.jq: %w", err)
		}
		results = append(results, v)
	}

	if cfg.Bool("all", false) {
		return results, nil
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// ExprRunner evaluates an expr-lang expression with the input bound to
// `input` and config.vars merged into the environment.
type ExprRunner struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewExprRunner creates an ExprRunner.
func NewExprRunner() *ExprRunner {
	return &ExprRunner{cache: make(map[string]*vm.Program)}
}

func (r *ExprRunner) compile(src string) (*vm.Program, error) {
	r.mu.RLock()
	program, ok := r.cache[src]
	r.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("transform.expr: compile: %w", err)
	}

	r.mu.Lock()
	r.cache[src] = program
	r.mu.Unlock()
	return program, nil
}

func (r *ExprRunner) Execute(_ context.Context, input any, cfg runtime.Config, _ runtime.RunContext) (any, error) {
	program, err := r.compile(cfg.String("expression", ""))
	if err != nil {
		return nil, err
	}
	value, err := toJSONValue(input)
	if err != nil {
		return nil, fmt.Errorf("transform.expr: %w", err)
	}

	env := map[string]any{}
	if vars, ok := cfg["vars"].(map[string]any); ok {
		for k, v := range vars {
			env[k] = v
		}
	}
	env["input"] = value

	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("transform.expr: %w", err)
	}
	return out, nil
}
