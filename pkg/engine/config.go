package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/polisai/polis-dag/pkg/domain"
)

// PipelineCatalog holds the named pipeline definitions loaded from disk.
// Updates replace the whole set atomically; runs already holding a
// definition keep it, since definitions are never mutated in place.
type PipelineCatalog struct {
	mu                sync.RWMutex
	pipelines         map[string]*domain.PipelineDefinition
	currentGeneration int64
	logger            *slog.Logger
}

// NewPipelineCatalog creates an empty catalog.
func NewPipelineCatalog(logger *slog.Logger) *PipelineCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineCatalog{
		pipelines: make(map[string]*domain.PipelineDefinition),
		logger:    logger,
	}
}

// UpdatePipelines validates defs and swaps them in. Nothing changes when any
// definition is invalid or cyclic.
func (pc *PipelineCatalog) UpdatePipelines(defs []domain.PipelineDefinition) error {
	if err := validatePipelines(defs); err != nil {
		return fmt.Errorf("pipeline validation failed: %w", err)
	}

	next := make(map[string]*domain.PipelineDefinition, len(defs))
	for i := range defs {
		def := defs[i]
		next[def.Name] = &def
	}

	pc.mu.Lock()
	pc.pipelines = next
	pc.currentGeneration++
	generation := pc.currentGeneration
	pc.mu.Unlock()

	pc.logger.Info("pipeline catalog updated",
		slog.Int64("generation", generation),
		slog.Int("pipeline_count", len(next)))
	return nil
}

// Generation counts successful updates.
func (pc *PipelineCatalog) Generation() int64 {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.currentGeneration
}

// GetPipeline returns the definition registered under name.
func (pc *PipelineCatalog) GetPipeline(name string) (*domain.PipelineDefinition, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	def, ok := pc.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrPipelineNotFound, name)
	}
	return def, nil
}

// ListPipelines returns the catalog sorted by name.
func (pc *PipelineCatalog) ListPipelines() []domain.PipelineDefinition {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	result := make([]domain.PipelineDefinition, 0, len(pc.pipelines))
	for _, def := range pc.pipelines {
		result = append(result, *def)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func validatePipelines(defs []domain.PipelineDefinition) error {
	seen := make(map[string]bool, len(defs))
	for i := range defs {
		def := &defs[i]
		if def.Name == "" {
			return fmt.Errorf("pipeline[%d]: name is required", i)
		}
		if seen[def.Name] {
			return fmt.Errorf("pipeline[%d]: duplicate name %q", i, def.Name)
		}
		seen[def.Name] = true

		if _, err := TopologicalSort(def); err != nil {
			return fmt.Errorf("pipeline %q: %w", def.Name, err)
		}
	}
	return nil
}
