package governance

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultIdleTTL is the minimum time a client must be idle before its
	// limiter is dropped.
	DefaultIdleTTL = time.Minute
	// DefaultMaxClients caps the number of tracked clients.
	DefaultMaxClients = 10000
)

// RateLimiterConfig defines the token bucket applied to each client key.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// MaxClients caps tracked keys; the least recently seen key is dropped
	// when the cap is reached. Zero means DefaultMaxClients.
	MaxClients int
}

// Enabled reports whether limiting is configured.
func (c RateLimiterConfig) Enabled() bool {
	return c.RequestsPerSecond > 0
}

func (c RateLimiterConfig) burst() int {
	if c.BurstSize > 0 {
		return c.BurstSize
	}
	return int(math.Max(1, math.Ceil(c.RequestsPerSecond)))
}

func (c RateLimiterConfig) maxClients() int {
	if c.MaxClients > 0 {
		return c.MaxClients
	}
	return DefaultMaxClients
}

// idleTTL is long enough for any bucket to refill completely, so dropping an
// idle limiter is indistinguishable from keeping it.
func (c RateLimiterConfig) idleTTL() time.Duration {
	ttl := DefaultIdleTTL
	if c.RequestsPerSecond > 0 {
		fill := time.Duration(float64(c.burst()) / c.RequestsPerSecond * float64(time.Second))
		if fill > ttl {
			ttl = fill
		}
	}
	return ttl
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one rate.Limiter per client key, e.g. the remote address
// of a run submission. Idle clients are swept periodically.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	config    RateLimiterConfig
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a rate limiter with the provided configuration.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		config:  config,
		now:     time.Now,
	}
}

// Configure replaces the limits. Existing clients keep their tokens, capped
// to the new burst size.
func (rl *RateLimiter) Configure(config RateLimiterConfig) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.config = config
	if !config.Enabled() {
		rl.clients = make(map[string]*clientLimiter)
		return
	}
	now := rl.now()
	for _, c := range rl.clients {
		c.limiter.SetLimitAt(now, rate.Limit(config.RequestsPerSecond))
		c.limiter.SetBurstAt(now, config.burst())
	}
}

// Allow consumes a token for key. A disabled limiter always allows.
func (rl *RateLimiter) Allow(key string) bool {
	allowed, _ := rl.take(key)
	return allowed
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) take(key string) (bool, RateLimitStats) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.config.Enabled() {
		return true, RateLimitStats{}
	}
	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.config.idleTTL() {
		rl.sweep(now)
	}

	c, ok := rl.clients[key]
	if !ok {
		if len(rl.clients) >= rl.config.maxClients() {
			rl.evictOldest()
		}
		c = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.burst()),
		}
		rl.clients[key] = c
	}
	c.lastSeen = now

	allowed := c.limiter.AllowN(now, 1)
	tokens := math.Max(0, c.limiter.TokensAt(now))
	burst := c.limiter.Burst()

	reset := now
	if missing := float64(burst) - tokens; missing > 0 {
		reset = now.Add(time.Duration(missing / float64(c.limiter.Limit()) * float64(time.Second)))
	}
	return allowed, RateLimitStats{
		Limit:     burst,
		Remaining: int(tokens),
		Reset:     reset,
	}
}

// sweep drops clients idle for longer than the TTL. Callers hold rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	ttl := rl.config.idleTTL()
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) >= ttl {
			delete(rl.clients, key)
		}
	}
	rl.lastSweep = now
}

// evictOldest drops the least recently seen client. Callers hold rl.mu.
func (rl *RateLimiter) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, c := range rl.clients {
		if !found || c.lastSeen.Before(oldest) {
			oldestKey, oldest, found = key, c.lastSeen, true
		}
	}
	if found {
		delete(rl.clients, oldestKey)
	}
}

// Middleware rejects requests over the limit with 429 and reports the bucket
// state in X-RateLimit-* headers. keyFn defaults to the client IP.
func (rl *RateLimiter) Middleware(keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, stats := rl.take(keyFn(r))
			if stats.Limit > 0 {
				WriteRateLimitHeaders(w, stats)
			}
			if !allowed {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitStats exposes the state of a client's limiter after a take.
type RateLimitStats struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// WriteRateLimitHeaders adds rate limit status headers to the response.
func WriteRateLimitHeaders(w http.ResponseWriter, stats RateLimitStats) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(stats.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(stats.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(stats.Reset.Unix(), 10))
}
