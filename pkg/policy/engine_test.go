package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contactsPolicy = `package pipeline

default allow := false

allow if {
	count(input) <= input_limit
}

input_limit := 2

verdict := {"allow": allow, "reason": "too many contacts"} if not allow
verdict := {"allow": true} if allow
`

func newTestEngine(t *testing.T, cacheEntries int) *Engine {
	t.Helper()
	engine, err := NewEngine(context.Background(), EngineOptions{
		Entrypoint:      "pipeline/allow",
		Modules:         map[string]string{"contacts.rego": contactsPolicy},
		CacheMaxEntries: cacheEntries,
	})
	require.NoError(t, err)
	return engine
}

func TestEngineEvaluateBoolean(t *testing.T) {
	engine := newTestEngine(t, 0)
	ctx := context.Background()

	decision, err := engine.Evaluate(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, decision.Allow)

	decision, err = engine.Evaluate(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.False(t, decision.Allow)
}

func TestEngineEvaluateObjectEntrypoint(t *testing.T) {
	engine := newTestEngine(t, -1)

	decision, err := engine.EvaluateEntrypoint(context.Background(), "data.pipeline.verdict", []int{1, 2, 3})
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Equal(t, "too many contacts", decision.Reason)
}

func TestEngineUndefinedDenies(t *testing.T) {
	engine := newTestEngine(t, 0)

	decision, err := engine.EvaluateEntrypoint(context.Background(), "pipeline/missing", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Nil(t, decision.Value)
}

func TestEngineCachesDecisions(t *testing.T) {
	engine := newTestEngine(t, 1)
	ctx := context.Background()

	_, err := engine.Evaluate(ctx, []string{"a"})
	require.NoError(t, err)
	_, err = engine.Evaluate(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.cache.Len())

	_, err = engine.Evaluate(ctx, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.cache.Len(), "capacity bounds the cache")

	engine.FlushCache()
	assert.Equal(t, 0, engine.cache.Len())
}

func TestNewEngineErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewEngine(ctx, EngineOptions{})
	assert.Error(t, err)

	_, err = NewEngine(ctx, EngineOptions{Modules: map[string]string{"bad.rego": "package x\nallow if {"}})
	assert.ErrorContains(t, err, "bad.rego")
}

func TestNormalizeEntrypoint(t *testing.T) {
	assert.Equal(t, "pipeline/allow", normalizeEntrypoint("data.pipeline.allow"))
	assert.Equal(t, "pipeline/allow", normalizeEntrypoint(" pipeline/allow "))
	assert.Equal(t, "a/b/c", normalizeEntrypoint("a.b.c"))
}
