package engine

import (
	"errors"
	"time"

	"github.com/polisai/polis-dag/internal/governance"
	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
)

// DefaultNodeTimeout applies when a node does not set timeoutMs.
const DefaultNodeTimeout = 20 * time.Second

// NodeDefaults are the execution settings of nodes that do not override them.
type NodeDefaults struct {
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
}

// DefaultNodeDefaults returns a 20s timeout, a single attempt and a 300ms
// retry delay.
func DefaultNodeDefaults() NodeDefaults {
	return NodeDefaults{
		Timeout:    DefaultNodeTimeout,
		Attempts:   governance.DefaultMaxAttempts,
		RetryDelay: governance.DefaultRetryDelay,
	}
}

func (d NodeDefaults) withFallbacks() NodeDefaults {
	fallback := DefaultNodeDefaults()
	if d.Timeout <= 0 {
		d.Timeout = fallback.Timeout
	}
	if d.Attempts <= 0 {
		d.Attempts = fallback.Attempts
	}
	if d.RetryDelay < 0 {
		d.RetryDelay = fallback.RetryDelay
	}
	return d
}

// NodeSettings are the resolved engine-level settings of one node.
type NodeSettings struct {
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
}

// ResolveSettings reads timeoutMs, retries and retryDelayMs from the node
// config on top of defaults. timeout_ms is accepted as an alias.
func ResolveSettings(node domain.NodeDefinition, defaults NodeDefaults) (NodeSettings, error) {
	defaults = defaults.withFallbacks()
	cfg := runtime.Config(node.Config)

	timeoutKey := runtime.KeyTimeoutMS
	if !cfg.Has(timeoutKey) && cfg.Has("timeout_ms") {
		timeoutKey = "timeout_ms"
	}
	timeoutMS, err := cfg.Int(timeoutKey, int(defaults.Timeout/time.Millisecond))
	if err != nil {
		return NodeSettings{}, &domain.ConfigValidationError{NodeID: node.ID, Key: timeoutKey, Err: err}
	}
	if timeoutMS <= 0 {
		return NodeSettings{}, &domain.ConfigValidationError{NodeID: node.ID, Key: timeoutKey, Err: errors.New("must be positive")}
	}

	attempts, err := cfg.Int(runtime.KeyRetries, defaults.Attempts)
	if err != nil {
		return NodeSettings{}, &domain.ConfigValidationError{NodeID: node.ID, Key: runtime.KeyRetries, Err: err}
	}
	if attempts < 1 {
		return NodeSettings{}, &domain.ConfigValidationError{NodeID: node.ID, Key: runtime.KeyRetries, Err: errors.New("must be at least 1")}
	}

	delayMS, err := cfg.Int(runtime.KeyRetryDelayMS, int(defaults.RetryDelay/time.Millisecond))
	if err != nil {
		return NodeSettings{}, &domain.ConfigValidationError{NodeID: node.ID, Key: runtime.KeyRetryDelayMS, Err: err}
	}
	if delayMS < 0 {
		return NodeSettings{}, &domain.ConfigValidationError{NodeID: node.ID, Key: runtime.KeyRetryDelayMS, Err: errors.New("must not be negative")}
	}

	settings := NodeSettings{
		Timeout:    time.Duration(timeoutMS) * time.Millisecond,
		Attempts:   attempts,
		RetryDelay: time.Duration(delayMS) * time.Millisecond,
	}
	if !cfg.Has(runtime.KeyRetryDelayMS) {
		// sub-millisecond defaults (tests) survive the int conversion above
		settings.RetryDelay = defaults.RetryDelay
	}
	return settings, nil
}
