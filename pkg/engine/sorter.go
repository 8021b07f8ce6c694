package engine

import (
	"github.com/polisai/polis-dag/pkg/domain"
)

// graph is the adjacency view of a validated definition. Predecessor and
// successor lists keep edge-declaration order.
type graph struct {
	ids   []string
	nodes map[string]domain.NodeDefinition
	preds map[string][]string
	succs map[string][]string
}

func newGraph(def *domain.PipelineDefinition) *graph {
	g := &graph{
		ids:   make([]string, 0, len(def.Nodes)),
		nodes: make(map[string]domain.NodeDefinition, len(def.Nodes)),
		preds: make(map[string][]string, len(def.Nodes)),
		succs: make(map[string][]string, len(def.Nodes)),
	}
	for _, node := range def.Nodes {
		g.ids = append(g.ids, node.ID)
		g.nodes[node.ID] = node
	}
	for _, edge := range def.Edges {
		g.succs[edge.From] = append(g.succs[edge.From], edge.To)
		g.preds[edge.To] = append(g.preds[edge.To], edge.From)
	}
	return g
}

func (g *graph) inDegrees() map[string]int {
	degrees := make(map[string]int, len(g.ids))
	for _, id := range g.ids {
		degrees[id] = len(g.preds[id])
	}
	return degrees
}

// sort runs Kahn's algorithm. The queue is seeded with zero in-degree nodes in
// definition order and drained FIFO, so the order is deterministic.
func (g *graph) sort() ([]string, error) {
	degrees := g.inDegrees()

	queue := make([]string, 0, len(g.ids))
	for _, id := range g.ids {
		if degrees[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, next := range g.succs[id] {
			degrees[next]--
			if degrees[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) < len(g.ids) {
		unsorted := make([]string, 0, len(g.ids)-len(order))
		for _, id := range g.ids {
			if degrees[id] > 0 {
				unsorted = append(unsorted, id)
			}
		}
		return nil, &domain.CyclicGraphError{Unsorted: unsorted}
	}
	return order, nil
}

// waves groups the nodes into dependency levels: every node of a wave has all
// its predecessors in earlier waves. Nodes inside a wave keep the order in
// which they became ready.
func (g *graph) waves() ([][]string, error) {
	degrees := g.inDegrees()

	var ready []string
	for _, id := range g.ids {
		if degrees[id] == 0 {
			ready = append(ready, id)
		}
	}

	var (
		waves  [][]string
		placed int
	)
	for len(ready) > 0 {
		waves = append(waves, ready)
		placed += len(ready)

		var next []string
		for _, id := range ready {
			for _, succ := range g.succs[id] {
				degrees[succ]--
				if degrees[succ] == 0 {
					next = append(next, succ)
				}
			}
		}
		ready = next
	}

	if placed < len(g.ids) {
		unsorted := make([]string, 0, len(g.ids)-placed)
		for _, id := range g.ids {
			if degrees[id] > 0 {
				unsorted = append(unsorted, id)
			}
		}
		return nil, &domain.CyclicGraphError{Unsorted: unsorted}
	}
	return waves, nil
}

// TopologicalSort validates def and returns its execution order.
func TopologicalSort(def *domain.PipelineDefinition) ([]string, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return newGraph(def).sort()
}
