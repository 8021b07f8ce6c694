package governance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxAttempts runs a node once, without retry.
	DefaultMaxAttempts = 1
	// DefaultRetryDelay is the fixed pause between failed attempts.
	DefaultRetryDelay = 300 * time.Millisecond
)

// RetryConfig defines attempt-based retry behaviour.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the fixed wait between a failed attempt and the next one.
	Delay time.Duration
	// Retryable classifies errors; nil retries everything except context
	// cancellation of the parent.
	Retryable func(error) bool
}

// DefaultRetryConfig returns a single attempt with the default delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultRetryDelay,
	}
}

// RetryPolicy decides whether and when another attempt runs.
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a retry policy, normalising non-positive values.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.Delay < 0 {
		config.Delay = 0
	}
	return &RetryPolicy{config: config}
}

// Config returns a copy of the current retry configuration.
func (rp *RetryPolicy) Config() RetryConfig {
	return rp.config
}

// ShouldRetry reports whether a failure of the given zero-based attempt is
// followed by another attempt.
func (rp *RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt+1 >= rp.config.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if rp.config.Retryable != nil {
		return rp.config.Retryable(err)
	}
	return true
}

// CalculateBackoff returns the delay before the next attempt. The delay is
// fixed; attempt is accepted for symmetry with other policies.
func (rp *RetryPolicy) CalculateBackoff(_ int) time.Duration {
	return rp.config.Delay
}

// Attempt describes one failed attempt that will be retried.
type Attempt struct {
	// Number is the 1-based number of the attempt that failed.
	Number int
	Err    error
	Delay  time.Duration
}

// ExecuteWithRetry calls fn until it succeeds, the error is not retryable,
// the attempts are exhausted or ctx is done. onRetry, when set, is invoked
// for each failed attempt that is followed by another one, before the delay.
// The last error is returned unwrapped so callers can classify it.
func ExecuteWithRetry[T any](
	ctx context.Context,
	rp *RetryPolicy,
	fn func(ctx context.Context, attempt int) (T, error),
	onRetry func(Attempt),
) (T, int, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt, err
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			return result, attempt + 1, nil
		}

		if !rp.ShouldRetry(attempt, err) {
			return zero, attempt + 1, err
		}

		delay := rp.CalculateBackoff(attempt)
		if onRetry != nil {
			onRetry(Attempt{Number: attempt + 1, Err: err, Delay: delay})
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, attempt + 1, fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-timer.C:
			}
		}
	}
}
