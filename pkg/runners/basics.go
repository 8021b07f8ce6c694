package runners

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/polisai/polis-dag/pkg/engine"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
)

var (
	constSchema = runtime.MustSchema(runtime.Object(map[string]*jsonschema.Schema{
		"value": runtime.AnyProp("value returned verbatim"),
	}))
	appendSchema = runtime.MustSchema(runtime.Object(map[string]*jsonschema.Schema{
		"suffix": runtime.StringProp("text appended to the input"),
	}, "suffix"))
	sleepSchema = runtime.MustSchema(runtime.Object(map[string]*jsonschema.Schema{
		"ms": runtime.IntegerProp("sleep duration in milliseconds", runtime.Min(0)),
	}))
)

func registerBasics(reg *engine.Registry) {
	reg.RegisterFunc("value.const", constValue,
		engine.WithSchema(constSchema),
		engine.WithDescription("returns config.value"))
	reg.RegisterFunc("text.upper", upper,
		engine.WithAliases("upper"),
		engine.WithDescription("upper-cases a string input"))
	reg.RegisterFunc("text.append", appendText,
		engine.WithSchema(appendSchema),
		engine.WithDescription("appends config.suffix to a string input"))
	reg.RegisterFunc("util.sleep", sleep,
		engine.WithSchema(sleepSchema),
		engine.WithDescription("waits config.ms milliseconds and passes the input through"))
}

func constValue(_ context.Context, _ any, cfg runtime.Config, _ runtime.RunContext) (any, error) {
	return cfg["value"], nil
}

func upper(_ context.Context, input any, _ runtime.Config, _ runtime.RunContext) (any, error) {
	s, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("text.upper: expected string input, got %T", input)
	}
	return strings.ToUpper(s), nil
}

func appendText(_ context.Context, input any, cfg runtime.Config, _ runtime.RunContext) (any, error) {
	s, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("text.append: expected string input, got %T", input)
	}
	return s + cfg.String("suffix", ""), nil
}

func sleep(ctx context.Context, input any, cfg runtime.Config, _ runtime.RunContext) (any, error) {
	ms, err := cfg.Int("ms", 0)
	if err != nil {
		return nil, fmt.Errorf("util.sleep: ms: %w", err)
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return input, nil
	}
}
