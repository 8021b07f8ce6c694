// Package runtime defines the core contracts shared by the executor and node
// runners, keeping runner business logic decoupled from execution mechanics.
package runtime

import "context"

// RunContext is the narrow view of a run that a runner may touch. Artifacts
// of other nodes are deliberately not reachable from here.
type RunContext interface {
	// NodeID returns the id of the node being executed.
	NodeID() string
	// Log appends an entry to the run log.
	Log(entry string)
}

// NodeRunner executes one node type. Runners must honour ctx: it is cancelled
// when the attempt times out or the run is aborted.
type NodeRunner interface {
	Execute(ctx context.Context, input any, cfg Config, rc RunContext) (any, error)
}

// RunnerFunc adapts a function to NodeRunner.
type RunnerFunc func(ctx context.Context, input any, cfg Config, rc RunContext) (any, error)

// Execute calls f.
func (f RunnerFunc) Execute(ctx context.Context, input any, cfg Config, rc RunContext) (any, error) {
	return f(ctx, input, cfg, rc)
}
