package domain

import (
	"fmt"
	"time"
)

// Empty is the type of NoInput.
type Empty struct{}

// MarshalJSON encodes the sentinel as null so it never leaks into results.
func (Empty) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

func (Empty) String() string {
	return "<no input>"
}

// NoInput is handed to a runner whose node has no predecessors and is not
// bound to the run's initial input. It is a value, not an error.
var NoInput = Empty{}

// IsNoInput reports whether v is the NoInput sentinel.
func IsNoInput(v any) bool {
	_, ok := v.(Empty)
	return ok
}

// RunStatus is the lifecycle state of a run record.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// ParseRunStatus validates a status string.
func ParseRunStatus(raw string) (RunStatus, error) {
	switch status := RunStatus(raw); status {
	case RunQueued, RunRunning, RunSucceeded, RunFailed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown run status %q", ErrConfigInvalid, raw)
	}
}

// StoredPipeline is a persisted definition.
type StoredPipeline struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Definition PipelineDefinition `json:"def"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// RunRecord is the caller-owned record of one pipeline run.
type RunRecord struct {
	ID         string     `json:"id"`
	PipelineID string     `json:"pipelineId,omitempty"`
	Name       string     `json:"name,omitempty"`
	Status     RunStatus  `json:"status"`
	Log        []string   `json:"log"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
}

// RunFilter narrows run listings.
type RunFilter struct {
	Status RunStatus
	Limit  int
}
