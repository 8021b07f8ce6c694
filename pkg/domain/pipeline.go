package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PipelineDefinition is a named DAG of typed nodes. It is immutable once
// handed to a run.
type PipelineDefinition struct {
	Name  string           `json:"name" yaml:"name"`
	Nodes []NodeDefinition `json:"nodes" yaml:"nodes"`
	Edges []Edge           `json:"edges" yaml:"edges"`
	// InputNode binds the run's initial input to a specific source node.
	// When empty the first node in execution order receives it.
	InputNode string `json:"inputNode,omitempty" yaml:"inputNode,omitempty"`
}

// NodeDefinition describes one processing step.
type NodeDefinition struct {
	ID     string         `json:"id" yaml:"id"`
	Type   string         `json:"type" yaml:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Edge is an ordered (from, to) pair. On the wire it is a two element array;
// the object form {"from": ..., "to": ...} is accepted as well.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// MarshalJSON encodes the edge as [from, to].
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.From, e.To})
}

// UnmarshalJSON accepts [from, to] or {"from": ..., "to": ...}.
func (e *Edge) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var pair []string
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("edge: %w", err)
		}
		return e.fromPair(pair)
	}

	var obj struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("edge: %w", err)
	}
	e.From, e.To = obj.From, obj.To
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML definition files.
func (e *Edge) UnmarshalYAML(unmarshal func(any) error) error {
	var pair []string
	if err := unmarshal(&pair); err == nil {
		return e.fromPair(pair)
	}

	var obj struct {
		From string `yaml:"from"`
		To   string `yaml:"to"`
	}
	if err := unmarshal(&obj); err != nil {
		return fmt.Errorf("edge: %w", err)
	}
	e.From, e.To = obj.From, obj.To
	return nil
}

func (e *Edge) fromPair(pair []string) error {
	if len(pair) != 2 {
		return fmt.Errorf("edge: expected [from, to], got %d elements", len(pair))
	}
	e.From, e.To = pair[0], pair[1]
	return nil
}

func (e Edge) String() string {
	return e.From + "->" + e.To
}

// Node returns the node with the given id.
func (d *PipelineDefinition) Node(id string) (NodeDefinition, bool) {
	for _, node := range d.Nodes {
		if node.ID == id {
			return node, true
		}
	}
	return NodeDefinition{}, false
}

// Validate checks the structural invariants that do not depend on the graph
// shape: at least one node, non-empty unique ids, non-empty types, edges
// between known nodes and a resolvable input binding. Cycle detection is left
// to the sorter.
func (d *PipelineDefinition) Validate() error {
	if len(d.Nodes) == 0 {
		return &InvalidDefinitionError{Reason: "at least one node is required"}
	}

	ids := make(map[string]bool, len(d.Nodes))
	for i, node := range d.Nodes {
		if strings.TrimSpace(node.ID) == "" {
			return &InvalidDefinitionError{Reason: fmt.Sprintf("node[%d]: id is required", i)}
		}
		if ids[node.ID] {
			return &InvalidDefinitionError{Reason: fmt.Sprintf("duplicate node id %q", node.ID)}
		}
		if strings.TrimSpace(node.Type) == "" {
			return &InvalidDefinitionError{Reason: fmt.Sprintf("node %q: type is required", node.ID)}
		}
		ids[node.ID] = true
	}

	for i, edge := range d.Edges {
		if !ids[edge.From] {
			return &InvalidDefinitionError{Reason: fmt.Sprintf("edge[%d]: from node %q not found", i, edge.From)}
		}
		if !ids[edge.To] {
			return &InvalidDefinitionError{Reason: fmt.Sprintf("edge[%d]: to node %q not found", i, edge.To)}
		}
	}

	if d.InputNode != "" {
		if err := d.ValidateInputNode(d.InputNode); err != nil {
			return err
		}
	}

	return nil
}

// ValidateInputNode reports whether id can receive the initial input: it must
// exist and have no incoming edges.
func (d *PipelineDefinition) ValidateInputNode(id string) error {
	if _, ok := d.Node(id); !ok {
		return &InvalidDefinitionError{Reason: fmt.Sprintf("input node %q not found", id)}
	}
	for _, edge := range d.Edges {
		if edge.To == id {
			return &InvalidDefinitionError{Reason: fmt.Sprintf("input node %q has incoming edge from %q", id, edge.From)}
		}
	}
	return nil
}

// Sinks returns the ids of nodes without outgoing edges, in definition order.
func (d *PipelineDefinition) Sinks() []string {
	hasOut := make(map[string]bool, len(d.Nodes))
	for _, edge := range d.Edges {
		hasOut[edge.From] = true
	}
	sinks := make([]string, 0, len(d.Nodes))
	for _, node := range d.Nodes {
		if !hasOut[node.ID] {
			sinks = append(sinks, node.ID)
		}
	}
	return sinks
}
