package governance

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterDisabledAllowsAll(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("client"))
	}
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 2, BurstSize: 2})
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "burst exhausted")
	assert.True(t, rl.Allow("b"), "keys have independent buckets")

	now = now.Add(500 * time.Millisecond)
	assert.True(t, rl.Allow("a"), "one token refilled after half a second")
	assert.False(t, rl.Allow("a"))
}

func TestRateLimiterConfigureCapsTokens(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 10})
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	rl.Configure(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1})
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1})
	rl.now = func() time.Time { return now }

	handler := rl.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/pipelines/run", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.4:1234"
	assert.Equal(t, "192.168.1.4", ClientIP(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", ClientIP(req))
}

func TestRateLimiterBoundsTrackedClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 10, MaxClients: 1000})
	rl.now = func() time.Time { return now }

	for i := 0; i < 100_000; i++ {
		rl.Allow(fmt.Sprintf("10.%d.%d.%d", i>>16&0xff, i>>8&0xff, i&0xff))
	}
	assert.LessOrEqual(t, rl.Len(), 1000)
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1})
	rl.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		rl.Allow(fmt.Sprintf("client-%d", i))
	}
	assert.Equal(t, 50, rl.Len())

	now = now.Add(DefaultIdleTTL + time.Second)
	assert.True(t, rl.Allow("fresh"))
	assert.Equal(t, 1, rl.Len(), "idle clients dropped on the next sweep")
}

func TestRateLimiterEvictsLeastRecentlySeen(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1, MaxClients: 2})
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	now = now.Add(time.Millisecond)
	assert.True(t, rl.Allow("b"))
	now = now.Add(time.Millisecond)
	assert.True(t, rl.Allow("c"), "a is evicted to make room")
	assert.Equal(t, 2, rl.Len())

	assert.False(t, rl.Allow("b"), "b kept its exhausted bucket")
	assert.True(t, rl.Allow("a"), "a starts over with a full bucket")
}

func TestRateLimiterConfigureDisableClears(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1})
	rl.Allow("a")
	rl.Configure(RateLimiterConfig{})
	assert.Zero(t, rl.Len())
	assert.True(t, rl.Allow("a"))
}
