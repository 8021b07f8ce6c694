package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/polisai/polis-dag/pkg/domain"
)

// MemoryRunStore is an in-memory implementation of RunStore.
type MemoryRunStore struct {
	mu        sync.RWMutex
	pipelines map[string]domain.StoredPipeline
	runs      map[string]domain.RunRecord
}

// NewMemoryRunStore creates a new MemoryRunStore.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		pipelines: make(map[string]domain.StoredPipeline),
		runs:      make(map[string]domain.RunRecord),
	}
}

// SavePipeline stores a definition.
func (s *MemoryRunStore) SavePipeline(_ context.Context, p domain.StoredPipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines[p.ID] = p
	return nil
}

// GetPipeline retrieves a definition.
func (s *MemoryRunStore) GetPipeline(_ context.Context, id string) (*domain.StoredPipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, id)
	}
	return &p, nil
}

// CreateRun stores a new run record.
func (s *MemoryRunStore) CreateRun(_ context.Context, rec *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[rec.ID]; exists {
		return fmt.Errorf("run %s already exists", rec.ID)
	}
	s.runs[rec.ID] = copyRecord(rec)
	return nil
}

// UpdateRun replaces an existing run record.
func (s *MemoryRunStore) UpdateRun(_ context.Context, rec *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[rec.ID]; !exists {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, rec.ID)
	}
	s.runs[rec.ID] = copyRecord(rec)
	return nil
}

// GetRun retrieves a run record.
func (s *MemoryRunStore) GetRun(_ context.Context, id string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	out := copyRecord(&rec)
	return &out, nil
}

// ListRuns returns the newest runs first.
func (s *MemoryRunStore) ListRuns(_ context.Context, filter domain.RunFilter) ([]domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, copyRecord(&rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if limit := listLimit(filter); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for memory store.
func (s *MemoryRunStore) Close() error {
	return nil
}
