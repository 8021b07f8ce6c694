package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common domain errors. Typed errors below match these through errors.Is.
var (
	ErrUnknownNodeType   = errors.New("unknown node type")
	ErrCyclicGraph       = errors.New("cyclic graph")
	ErrNodeTimeout       = errors.New("node timeout")
	ErrNodeExecution     = errors.New("node execution failed")
	ErrInvalidDefinition = errors.New("invalid pipeline definition")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrRunNotFound       = errors.New("run not found")
	ErrPipelineNotFound  = errors.New("pipeline not found")
)

// UnknownNodeTypeError is returned when no runner is registered for a type.
type UnknownNodeTypeError struct {
	Type   string
	NodeID string
}

func (e *UnknownNodeTypeError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("unknown node type %q", e.Type)
	}
	return fmt.Sprintf("unknown node type %q for node %q", e.Type, e.NodeID)
}

// Is reports whether target is ErrUnknownNodeType.
func (e *UnknownNodeTypeError) Is(target error) bool {
	return target == ErrUnknownNodeType
}

// CyclicGraphError is returned by the sorter when the graph is not a DAG.
// Unsorted holds the nodes that never reached zero in-degree, in definition order.
type CyclicGraphError struct {
	Unsorted []string
}

func (e *CyclicGraphError) Error() string {
	if len(e.Unsorted) == 0 {
		return "cyclic graph detected"
	}
	return fmt.Sprintf("cyclic graph detected: unsorted nodes [%s]", strings.Join(e.Unsorted, ", "))
}

// Is reports whether target is ErrCyclicGraph.
func (e *CyclicGraphError) Is(target error) bool {
	return target == ErrCyclicGraph
}

// NodeTimeoutError is returned when a single attempt exceeds its deadline.
type NodeTimeoutError struct {
	NodeID  string
	Timeout time.Duration
}

func (e *NodeTimeoutError) Error() string {
	return fmt.Sprintf("timeout:%s:%dms", e.NodeID, e.Timeout.Milliseconds())
}

// Is reports whether target is ErrNodeTimeout.
func (e *NodeTimeoutError) Is(target error) bool {
	return target == ErrNodeTimeout
}

// NodeExecutionError wraps a failure raised by a runner.
type NodeExecutionError struct {
	NodeID string
	Err    error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.NodeID, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrNodeExecution.
func (e *NodeExecutionError) Is(target error) bool {
	return target == ErrNodeExecution
}

// InvalidDefinitionError reports a structural problem in a definition.
type InvalidDefinitionError struct {
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	return "invalid pipeline definition: " + e.Reason
}

// Is reports whether target is ErrInvalidDefinition.
func (e *InvalidDefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinition
}

// ConfigValidationError reports a node config value the engine or the
// runner's schema rejected.
type ConfigValidationError struct {
	NodeID string
	Key    string
	Err    error
}

func (e *ConfigValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("node %q config: %v", e.NodeID, e.Err)
	}
	return fmt.Sprintf("node %q config %q: %v", e.NodeID, e.Key, e.Err)
}

func (e *ConfigValidationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConfigInvalid.
func (e *ConfigValidationError) Is(target error) bool {
	return target == ErrConfigInvalid
}

// IsRetryable reports whether err is a per-attempt failure the executor may
// retry. Every other failure aborts the run immediately.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNodeTimeout) || errors.Is(err, ErrNodeExecution)
}

// ErrorResponse defines the standard JSON error model returned by the HTTP API.
// TraceID carries the current OpenTelemetry trace identifier when available.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}
