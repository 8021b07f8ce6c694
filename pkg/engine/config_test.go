package engine

import (
	"errors"
	"testing"

	"github.com/polisai/polis-dag/pkg/domain"
)

func TestPipelineCatalogUpdateAndGet(t *testing.T) {
	catalog := NewPipelineCatalog(nil)

	err := catalog.UpdatePipelines([]domain.PipelineDefinition{
		{Name: "b", Nodes: []domain.NodeDefinition{node("n", "t", nil)}},
		{Name: "a", Nodes: []domain.NodeDefinition{node("n", "t", nil)}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if catalog.Generation() != 1 {
		t.Fatalf("expected generation 1, got %d", catalog.Generation())
	}

	def, err := catalog.GetPipeline("a")
	if err != nil || def.Name != "a" {
		t.Fatalf("expected pipeline a, got %v (%v)", def, err)
	}

	list := catalog.ListPipelines()
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
		t.Fatalf("unexpected list %+v", list)
	}

	if _, err := catalog.GetPipeline("missing"); !errors.Is(err, domain.ErrPipelineNotFound) {
		t.Fatalf("expected ErrPipelineNotFound, got %v", err)
	}
}

func TestPipelineCatalogRejectsInvalidSetAtomically(t *testing.T) {
	catalog := NewPipelineCatalog(nil)
	if err := catalog.UpdatePipelines([]domain.PipelineDefinition{
		{Name: "keep", Nodes: []domain.NodeDefinition{node("n", "t", nil)}},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	cases := map[string][]domain.PipelineDefinition{
		"cycle": {{
			Name:  "cyclic",
			Nodes: []domain.NodeDefinition{node("a", "t", nil), node("b", "t", nil)},
			Edges: []domain.Edge{edge("a", "b"), edge("b", "a")},
		}},
		"duplicate": {
			{Name: "dup", Nodes: []domain.NodeDefinition{node("n", "t", nil)}},
			{Name: "dup", Nodes: []domain.NodeDefinition{node("n", "t", nil)}},
		},
		"unnamed": {{Nodes: []domain.NodeDefinition{node("n", "t", nil)}}},
	}
	for name, defs := range cases {
		if err := catalog.UpdatePipelines(defs); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	if _, err := catalog.GetPipeline("keep"); err != nil {
		t.Fatalf("previous set must survive failed updates: %v", err)
	}
	if catalog.Generation() != 1 {
		t.Fatalf("failed updates must not bump the generation")
	}
}
