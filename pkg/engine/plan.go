package engine

import (
	"errors"
	"fmt"

	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
)

// Plan describes how a definition would execute, without running anything.
type Plan struct {
	Name      string        `json:"name"`
	Order     []string      `json:"order"`
	Waves     [][]string    `json:"waves"`
	InputNode string        `json:"inputNode,omitempty"`
	Sinks     []string      `json:"sinks"`
	Nodes     []PlannedNode `json:"nodes"`
}

// PlannedNode is the resolved view of one node.
type PlannedNode struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Canonical    string   `json:"canonical,omitempty"`
	Description  string   `json:"description,omitempty"`
	Predecessors []string `json:"predecessors,omitempty"`
	TimeoutMS    int64    `json:"timeoutMs"`
	Attempts     int      `json:"attempts"`
	RetryDelayMS int64    `json:"retryDelayMs"`
}

// Plan validates def up front: structure, order, node types, engine settings
// and runner config schemas. Unlike Run, which discovers unknown types only
// when it reaches them, Plan reports every problem it finds, joined. The plan
// is returned alongside the error when the graph itself could be ordered.
func (e *Executor) Plan(def *domain.PipelineDefinition, inputNode string) (*Plan, error) {
	if def == nil {
		return nil, &domain.InvalidDefinitionError{Reason: "definition is required"}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	g := newGraph(def)
	order, err := g.sort()
	if err != nil {
		return nil, err
	}
	waves, err := g.waves()
	if err != nil {
		return nil, err
	}

	binding, err := bindInput(def, order, RunRequest{InputNode: inputNode})
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Name:      def.Name,
		Order:     order,
		Waves:     waves,
		InputNode: binding.nodeID,
		Sinks:     def.Sinks(),
		Nodes:     make([]PlannedNode, 0, len(order)),
	}

	defaults := e.Defaults()
	var problems []error
	for _, id := range order {
		node := g.nodes[id]
		planned := PlannedNode{
			ID:           node.ID,
			Type:         node.Type,
			Predecessors: g.preds[id],
		}

		spec, err := e.registry.Resolve(node.Type)
		if err != nil {
			problems = append(problems, &domain.UnknownNodeTypeError{Type: node.Type, NodeID: node.ID})
		} else {
			planned.Canonical = spec.Type
			planned.Description = spec.Description
			if err := spec.Schema.Validate(runtime.Config(node.Config)); err != nil {
				problems = append(problems, &domain.ConfigValidationError{NodeID: node.ID, Err: err})
			}
		}

		settings, err := ResolveSettings(node, defaults)
		if err != nil {
			problems = append(problems, err)
		} else {
			planned.TimeoutMS = settings.Timeout.Milliseconds()
			planned.Attempts = settings.Attempts
			planned.RetryDelayMS = settings.RetryDelay.Milliseconds()
		}

		plan.Nodes = append(plan.Nodes, planned)
	}

	if len(problems) > 0 {
		return plan, fmt.Errorf("pipeline %q: %w", def.Name, errors.Join(problems...))
	}
	return plan, nil
}
