package governance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAttemptTimeout is returned when an attempt exceeds its deadline.
	ErrAttemptTimeout = errors.New("attempt timeout exceeded")
	// ErrAttemptPanicked is returned when the attempt function panics.
	ErrAttemptPanicked = errors.New("attempt panicked")
)

// RunWithTimeout runs fn under a context that is cancelled after timeout.
// The result races the deadline: when the deadline wins, ErrAttemptTimeout is
// returned immediately even if fn ignores its context and keeps running.
// A non-positive timeout disables the deadline. Cancellation of ctx itself
// is reported as ctx.Err().
func RunWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
	)
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrAttemptPanicked, r)}
			}
		}()
		value, err := fn(attemptCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return zero, ErrAttemptTimeout
		}
		return out.value, out.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, ErrAttemptTimeout
	}
}
