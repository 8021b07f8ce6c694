package engine

import (
	"github.com/polisai/polis-dag/pkg/domain"
)

// inputBinding decides which source node receives the run's initial input.
type inputBinding struct {
	nodeID   string
	value    any
	hasValue bool
}

// bindInput resolves the input node: the request override, then the
// definition's InputNode, then the first node in execution order. An explicit
// binding must name an existing node without incoming edges.
func bindInput(def *domain.PipelineDefinition, order []string, req RunRequest) (inputBinding, error) {
	binding := inputBinding{value: req.Input, hasValue: req.Input != nil}

	switch {
	case req.InputNode != "":
		if err := def.ValidateInputNode(req.InputNode); err != nil {
			return inputBinding{}, err
		}
		binding.nodeID = req.InputNode
	case def.InputNode != "":
		binding.nodeID = def.InputNode
	case len(order) > 0:
		binding.nodeID = order[0]
	}
	return binding, nil
}

// resolveInput builds the input of nodeID from the outputs of its
// predecessors, taken in edge-declaration order.
func resolveInput(g *graph, exec *ExecutionContext, binding inputBinding, nodeID string) any {
	preds := g.preds[nodeID]
	switch len(preds) {
	case 0:
		if binding.hasValue && binding.nodeID == nodeID {
			return binding.value
		}
		return domain.NoInput
	case 1:
		out, _ := exec.Artifact(preds[0])
		return out
	default:
		inputs := make([]any, len(preds))
		for i, pred := range preds {
			inputs[i], _ = exec.Artifact(pred)
		}
		return inputs
	}
}

// collectSinks returns the outputs of every sink that produced one.
func collectSinks(def *domain.PipelineDefinition, exec *ExecutionContext) map[string]any {
	sinks := make(map[string]any)
	for _, id := range def.Sinks() {
		if out, ok := exec.Artifact(id); ok {
			sinks[id] = out
		}
	}
	return sinks
}
