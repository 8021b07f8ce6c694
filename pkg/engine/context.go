package engine

import (
	"sync"
	"time"
)

// LogEntry is one line of the run log with the time it was written.
type LogEntry struct {
	At   time.Time
	Line string
}

// ExecutionContext is the per-run log and artifact store. It is created at
// run start and never shared across runs. Appends are safe for concurrent
// nodes of the same wave.
type ExecutionContext struct {
	mu        sync.Mutex
	entries   []LogEntry
	artifacts map[string]any
	onLog     func(string)
	now       func() time.Time
}

func newExecutionContext(onLog func(string), now func() time.Time) *ExecutionContext {
	if now == nil {
		now = time.Now
	}
	return &ExecutionContext{
		artifacts: make(map[string]any),
		onLog:     onLog,
		now:       now,
	}
}

// Log appends line to the run log and forwards it to the sink, if any.
func (c *ExecutionContext) Log(line string) {
	c.mu.Lock()
	c.entries = append(c.entries, LogEntry{At: c.now(), Line: line})
	sink := c.onLog
	c.mu.Unlock()

	if sink != nil {
		sink(line)
	}
}

// Entries returns a copy of the structured log.
func (c *ExecutionContext) Entries() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lines returns a copy of the log lines.
func (c *ExecutionContext) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.entries))
	for i, entry := range c.entries {
		out[i] = entry.Line
	}
	return out
}

func (c *ExecutionContext) setArtifact(nodeID string, output any) {
	c.mu.Lock()
	c.artifacts[nodeID] = output
	c.mu.Unlock()
}

// Artifact returns the stored output of nodeID.
func (c *ExecutionContext) Artifact(nodeID string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.artifacts[nodeID]
	return v, ok
}

// Artifacts returns a copy of every stored output.
func (c *ExecutionContext) Artifacts() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.artifacts))
	for k, v := range c.artifacts {
		out[k] = v
	}
	return out
}

// nodeRunContext is the runner-facing view of the execution context.
type nodeRunContext struct {
	exec   *ExecutionContext
	nodeID string
}

func (rc nodeRunContext) NodeID() string {
	return rc.nodeID
}

func (rc nodeRunContext) Log(entry string) {
	rc.exec.Log(entry)
}
