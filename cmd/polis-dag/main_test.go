package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/polisai/polis-dag/internal/governance"
	"github.com/polisai/polis-dag/pkg/config"
	"github.com/polisai/polis-dag/pkg/engine"
	"github.com/polisai/polis-dag/pkg/logging"
	"github.com/polisai/polis-dag/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upperPipeline = `{
  "name": "shout",
  "nodes": [
    {"id": "up", "type": "text.upper"},
    {"id": "bang", "type": "text.append", "config": {"suffix": "!"}}
  ],
  "edges": [{"from": "up", "to": "bang"}]
}`

const cyclicPipeline = `
name: loop
nodes:
  - id: a
    type: text.upper
  - id: b
    type: text.upper
edges:
  - from: a
    to: b
  - from: b
    to: a
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()
	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"serve", "run", "validate", "runners"})
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestRunCommandPrintsResult(t *testing.T) {
	path := writeFile(t, t.TempDir(), "shout.json", upperPipeline)

	out, err := execute(t, "run", path, "--input", `"hello"`, "--log")
	require.NoError(t, err)

	var got runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "shout", got.Name)
	assert.Equal(t, "succeeded", got.Status)
	assert.Equal(t, "HELLO!", got.Result)
	assert.NotEmpty(t, got.Log)
}

func TestRunCommandReportsNodeFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "shout.json", upperPipeline)

	out, err := execute(t, "run", path, "--input", `42`)
	require.Error(t, err)

	var got runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "failed", got.Status)
	assert.Contains(t, got.Error, `node "up" failed`)
	assert.Nil(t, got.Result)
}

func TestRunCommandRejectsBadInput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "shout.json", upperPipeline)

	_, err := execute(t, "run", path, "--input", `{not json`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --input JSON")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "shout.json", upperPipeline)
	bad := writeFile(t, dir, "loop.yaml", cyclicPipeline)

	out, err := execute(t, "validate", good, "--plan")
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+good+" (shout, 2 nodes)")
	assert.Contains(t, out, `"waves"`)

	out, err = execute(t, "validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL "+bad)
	assert.Contains(t, err.Error(), "1 of 2 pipeline files invalid")
	assert.Contains(t, err.Error(), "cyclic graph")
}

func TestRunnersCommandListsBuiltins(t *testing.T) {
	out, err := execute(t, "runners")
	require.NoError(t, err)
	for _, want := range []string{"TYPE", "contacts.import", "text.upper", "transform.jq", "policy.opa"} {
		assert.Contains(t, out, want)
	}
}

func TestCommandsRejectInvalidConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "logging:\n  level: loud\n")

	_, err := execute(t, "runners", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func newTestState(t *testing.T, dir string) *serviceState {
	t.Helper()
	cfg := config.Default()
	logger, level := logging.NewLeveledLogger(logging.Config{Level: "info", Output: io.Discard})
	return &serviceState{
		logger:   logger,
		level:    level,
		executor: newExecutor(cfg, logger),
		catalog:  engine.NewPipelineCatalog(logger),
		limiter:  governance.NewRateLimiter(governance.RateLimiterConfig{}),
		metrics:  server.NewMetrics(),
		dir:      dir,
	}
}

func TestServiceStateApply(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shout.json", upperPipeline)
	state := newTestState(t, "")

	cfg := config.Default()
	cfg.Logging.Level = "debug"
	cfg.Engine.DefaultTimeoutMS = 750
	cfg.Engine.DefaultRetries = 3
	cfg.Engine.RetryDelayMS = 5
	cfg.Pipelines.Dir = dir
	state.apply(cfg)

	assert.Equal(t, slog.LevelDebug, state.level.Level())
	defaults := state.executor.Defaults()
	assert.Equal(t, 750*time.Millisecond, defaults.Timeout)
	assert.Equal(t, 3, defaults.Attempts)
	assert.Equal(t, 5*time.Millisecond, defaults.RetryDelay)

	def, err := state.catalog.GetPipeline("shout")
	require.NoError(t, err)
	assert.Len(t, def.Nodes, 2)
}

func TestReloadPipelinesKeepsCatalogOnError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shout.json", upperPipeline)
	state := newTestState(t, dir)
	require.True(t, state.reloadPipelines())
	generation := state.catalog.Generation()

	writeFile(t, dir, "broken.json", `{"name": `)
	assert.False(t, state.reloadPipelines())
	assert.Equal(t, generation, state.catalog.Generation())

	_, err := state.catalog.GetPipeline("shout")
	assert.NoError(t, err)
}

func TestReloadCatalogWithoutDir(t *testing.T) {
	n, err := reloadCatalog(engine.NewPipelineCatalog(nil), "")
	require.NoError(t, err)
	assert.Zero(t, n)
}
