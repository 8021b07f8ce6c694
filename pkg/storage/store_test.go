package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/polisai/polis-dag/pkg/config"
	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStoreConformance(t *testing.T, newStore func(t *testing.T) RunStore) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("pipelines", func(t *testing.T) {
		s := newStore(t)
		def := domain.PipelineDefinition{
			Name:  "contacts",
			Nodes: []domain.NodeDefinition{{ID: "a", Type: "value.const", Config: map[string]any{"value": "x"}}},
		}
		require.NoError(t, s.SavePipeline(ctx, domain.StoredPipeline{ID: "p1", Name: "contacts", Definition: def, CreatedAt: base}))

		got, err := s.GetPipeline(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "contacts", got.Name)
		assert.Equal(t, "value.const", got.Definition.Nodes[0].Type)
		assert.Equal(t, "x", got.Definition.Nodes[0].Config["value"])
		assert.True(t, base.Equal(got.CreatedAt))

		_, err = s.GetPipeline(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrPipelineNotFound)
	})

	t.Run("run lifecycle", func(t *testing.T) {
		s := newStore(t)
		rec := &domain.RunRecord{ID: "r1", PipelineID: "p1", Name: "contacts", Status: domain.RunRunning, Log: []string{}, StartedAt: base}
		require.NoError(t, s.CreateRun(ctx, rec))

		got, err := s.GetRun(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, domain.RunRunning, got.Status)
		assert.Empty(t, got.Log)
		assert.Nil(t, got.EndedAt)
		assert.Nil(t, got.Result)

		ended := base.Add(2 * time.Second)
		rec.Status = domain.RunSucceeded
		rec.Log = []string{"node:start:a", "node:end:a:1ms"}
		rec.Result = map[string]any{"count": float64(3)}
		rec.EndedAt = &ended
		require.NoError(t, s.UpdateRun(ctx, rec))

		got, err = s.GetRun(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, domain.RunSucceeded, got.Status)
		assert.Equal(t, []string{"node:start:a", "node:end:a:1ms"}, got.Log)
		assert.Equal(t, map[string]any{"count": float64(3)}, got.Result)
		require.NotNil(t, got.EndedAt)
		assert.True(t, ended.Equal(*got.EndedAt))
	})

	t.Run("failed run keeps error", func(t *testing.T) {
		s := newStore(t)
		rec := &domain.RunRecord{ID: "r1", Status: domain.RunRunning, StartedAt: base}
		require.NoError(t, s.CreateRun(ctx, rec))

		rec.Status = domain.RunFailed
		rec.Error = "timeout:a:10ms"
		rec.Log = append(rec.Log, "error: timeout:a:10ms")
		require.NoError(t, s.UpdateRun(ctx, rec))

		got, err := s.GetRun(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "timeout:a:10ms", got.Error)
		assert.Equal(t, []string{"error: timeout:a:10ms"}, got.Log)
	})

	t.Run("missing runs", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrRunNotFound)

		err = s.UpdateRun(ctx, &domain.RunRecord{ID: "nope", Status: domain.RunFailed, StartedAt: base})
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("list newest first with filter", func(t *testing.T) {
		s := newStore(t)
		statuses := []domain.RunStatus{domain.RunSucceeded, domain.RunFailed, domain.RunSucceeded}
		for i, status := range statuses {
			rec := &domain.RunRecord{
				ID:        string(rune('a' + i)),
				Status:    status,
				StartedAt: base.Add(time.Duration(i) * time.Minute),
			}
			require.NoError(t, s.CreateRun(ctx, rec))
		}

		all, err := s.ListRuns(ctx, domain.RunFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"c", "b", "a"}, ids(all))

		succeeded, err := s.ListRuns(ctx, domain.RunFilter{Status: domain.RunSucceeded})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, ids(succeeded))

		limited, err := s.ListRuns(ctx, domain.RunFilter{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, ids(limited))
	})
}

func ids(recs []domain.RunRecord) []string {
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.ID
	}
	return out
}

func TestMemoryRunStore(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) RunStore {
		return NewMemoryRunStore()
	})
}

func TestSQLiteRunStore(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) RunStore {
		s, err := OpenSQLite(context.Background(), SQLiteConfig{Path: filepath.Join(t.TempDir(), "runs.db"), WAL: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemoryRunStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRunStore()
	rec := &domain.RunRecord{ID: "r1", Status: domain.RunRunning, Log: []string{"one"}, StartedAt: time.Now()}
	require.NoError(t, s.CreateRun(ctx, rec))

	rec.Log[0] = "mutated"
	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, got.Log)

	assert.Error(t, s.CreateRun(ctx, rec), "duplicate ids are rejected")
}

func TestSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), SQLiteConfig{})
	assert.Error(t, err)
}

func TestRebindNumbersPlaceholders(t *testing.T) {
	pg := &SQLRunStore{numbered: true}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &SQLRunStore{}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestPostgresConfigValidate(t *testing.T) {
	cfg := DefaultPostgresConfig("postgres://localhost/dag")
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.URL = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MaxIdleConns = bad.MaxOpenConns + 1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.PingTimeout = 0
	assert.Error(t, bad.Validate())
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRunStore{}, s)

	s, err = Open(ctx, config.StoreConfig{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLRunStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)
}
