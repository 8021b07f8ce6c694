package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
)

func TestPlanDescribesExecution(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("emit@v1", constRunner("x"), WithDescription("emits x"))
	registry.RegisterFunc("echo", echoRunner())

	def := &domain.PipelineDefinition{
		Name: "plan",
		Nodes: []domain.NodeDefinition{
			node("a", "emit", map[string]any{"timeoutMs": 500, "retries": 3}),
			node("b", "echo", nil),
			node("c", "echo", nil),
		},
		Edges: []domain.Edge{edge("a", "b"), edge("a", "c")},
	}

	plan, err := newTestExecutor(registry, 1).Plan(def, "")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !reflect.DeepEqual(plan.Order, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected order %v", plan.Order)
	}
	if !reflect.DeepEqual(plan.Waves, [][]string{{"a"}, {"b", "c"}}) {
		t.Fatalf("unexpected waves %v", plan.Waves)
	}
	if plan.InputNode != "a" {
		t.Fatalf("expected input node a, got %q", plan.InputNode)
	}
	if !reflect.DeepEqual(plan.Sinks, []string{"b", "c"}) {
		t.Fatalf("unexpected sinks %v", plan.Sinks)
	}

	first := plan.Nodes[0]
	if first.Canonical != "emit@v1" || first.Description != "emits x" {
		t.Fatalf("unexpected registration view %+v", first)
	}
	if first.TimeoutMS != 500 || first.Attempts != 3 {
		t.Fatalf("unexpected settings %+v", first)
	}
	if plan.Nodes[1].TimeoutMS != DefaultNodeTimeout.Milliseconds() || plan.Nodes[1].Attempts != 1 {
		t.Fatalf("expected defaults on b, got %+v", plan.Nodes[1])
	}
	if !reflect.DeepEqual(plan.Nodes[2].Predecessors, []string{"a"}) {
		t.Fatalf("unexpected predecessors %v", plan.Nodes[2].Predecessors)
	}
}

func TestPlanReportsEveryProblem(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("typed", constRunner(nil), WithSchema(runtime.MustSchema(runtime.Object(
		map[string]*jsonschema.Schema{"url": runtime.StringProp("target")}, "url",
	))))

	def := &domain.PipelineDefinition{
		Name: "broken",
		Nodes: []domain.NodeDefinition{
			node("a", "missing", nil),
			node("b", "typed", nil),
			node("c", "typed", map[string]any{"url": "https://example.test", "retries": -1}),
		},
	}

	plan, err := newTestExecutor(registry, 1).Plan(def, "")
	if err == nil {
		t.Fatalf("expected plan errors")
	}
	if !errors.Is(err, domain.ErrUnknownNodeType) || !errors.Is(err, domain.ErrConfigInvalid) {
		t.Fatalf("expected unknown type and config errors, got %v", err)
	}
	if plan == nil || len(plan.Nodes) != 3 {
		t.Fatalf("expected a partial plan alongside the error")
	}
}

func TestPlanRejectsCycles(t *testing.T) {
	def := &domain.PipelineDefinition{
		Name:  "cycle",
		Nodes: []domain.NodeDefinition{node("a", "t", nil), node("b", "t", nil)},
		Edges: []domain.Edge{edge("a", "b"), edge("b", "a")},
	}
	if _, err := newTestExecutor(NewRegistry(), 1).Plan(def, ""); !errors.Is(err, domain.ErrCyclicGraph) {
		t.Fatalf("expected ErrCyclicGraph, got %v", err)
	}
}
