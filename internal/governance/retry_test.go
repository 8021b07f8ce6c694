package governance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetryPolicyNormalises(t *testing.T) {
	rp := NewRetryPolicy(RetryConfig{MaxAttempts: 0, Delay: -time.Second})
	cfg := rp.Config()
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, time.Duration(0), cfg.Delay)
	assert.Equal(t, 300*time.Millisecond, DefaultRetryConfig().Delay)
}

func TestShouldRetry(t *testing.T) {
	boom := errors.New("boom")
	rp := NewRetryPolicy(RetryConfig{MaxAttempts: 3})

	assert.True(t, rp.ShouldRetry(0, boom))
	assert.True(t, rp.ShouldRetry(1, boom))
	assert.False(t, rp.ShouldRetry(2, boom), "third attempt is the last")
	assert.False(t, rp.ShouldRetry(0, nil))
	assert.False(t, rp.ShouldRetry(0, context.Canceled))

	selective := NewRetryPolicy(RetryConfig{
		MaxAttempts: 3,
		Retryable:   func(err error) bool { return !errors.Is(err, boom) },
	})
	assert.False(t, selective.ShouldRetry(0, boom))
}

func TestExecuteWithRetrySucceedsAfterFailures(t *testing.T) {
	rp := NewRetryPolicy(RetryConfig{MaxAttempts: 3, Delay: time.Millisecond})
	var retries []Attempt

	calls := 0
	result, attempts, err := ExecuteWithRetry(context.Background(), rp,
		func(_ context.Context, attempt int) (string, error) {
			calls++
			if attempt < 2 {
				return "", errors.New("transient")
			}
			return "ok", nil
		},
		func(a Attempt) { retries = append(retries, a) },
	)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	require.Len(t, retries, 2)
	assert.Equal(t, 1, retries[0].Number)
	assert.Equal(t, 2, retries[1].Number)
}

func TestExecuteWithRetryReturnsLastError(t *testing.T) {
	rp := NewRetryPolicy(RetryConfig{MaxAttempts: 2, Delay: time.Millisecond})
	var retries int

	_, attempts, err := ExecuteWithRetry(context.Background(), rp,
		func(_ context.Context, attempt int) (int, error) {
			return 0, errors.New("fail " + string(rune('a'+attempt)))
		},
		func(Attempt) { retries++ },
	)

	require.Error(t, err)
	assert.Equal(t, "fail b", err.Error())
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, retries, "only the first failure is followed by a retry")
}

func TestExecuteWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rp := NewRetryPolicy(RetryConfig{MaxAttempts: 5, Delay: time.Hour})

	_, attempts, err := ExecuteWithRetry(ctx, rp,
		func(context.Context, int) (int, error) { return 0, errors.New("nope") },
		func(Attempt) { cancel() },
	)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
