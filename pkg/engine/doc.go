// Package engine executes pipeline definitions: directed acyclic graphs of
// typed nodes whose outputs feed their successors.
//
// Layout:
//
//	sorter.go     - Kahn ordering with definition-order tie-breaks, cycle detection, waves
//	registry.go   - node type to runner mapping, versions (kind@v) and aliases
//	settings.go   - per-node timeout, attempt and retry delay resolution
//	inputs.go     - initial input binding and predecessor input assembly
//	executor.go   - run lifecycle, sink selection, tracing
//	governance.go - per-node attempts under timeout with fixed-delay retries
//	plan.go       - up-front validation without execution
//	config.go     - catalog of named pipelines loaded from disk
//
// A run owns its ExecutionContext; one Executor serves concurrent runs.
package engine
