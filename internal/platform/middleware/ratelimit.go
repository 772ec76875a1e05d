package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const defaultIdleTTL = 10 * time.Minute

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL drops buckets nobody has used for this long. Zero means
	// defaultIdleTTL.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		IdleTTL:           defaultIdleTTL,
	}
}

// RouteLimit gives one route its own, usually tighter, budget. Path is the
// route template as registered, e.g. /api/v1/doctor/checkin. Each caller gets
// a separate bucket per route limit, independent of the general one.
type RouteLimit struct {
	Method string
	Path   string
	Limit  RateLimitConfig
}

type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(rate float64, burst int, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: now,
	}
}

func (b *tokenBucket) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (b *tokenBucket) retryAfter() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refillRate <= 0 {
		return 1
	}
	return int((1-b.tokens)/b.refillRate) + 1
}

func (b *tokenBucket) idleSince(cutoff time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRefill.Before(cutoff)
}

// rateLimiterStore holds per-key token buckets and sweeps idle ones at most
// once per TTL.
type rateLimiterStore struct {
	buckets   map[string]*tokenBucket
	mu        sync.RWMutex
	config    RateLimitConfig
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiterStore(cfg RateLimitConfig) *rateLimiterStore {
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	return &rateLimiterStore{
		buckets:   make(map[string]*tokenBucket),
		config:    cfg,
		ttl:       ttl,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (s *rateLimiterStore) getBucket(key string) *tokenBucket {
	now := s.now()
	s.mu.RLock()
	bucket, ok := s.buckets[key]
	due := now.Sub(s.lastSweep) >= s.ttl
	s.mu.RUnlock()
	if ok && !due {
		return bucket
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) >= s.ttl {
		cutoff := now.Add(-s.ttl)
		for k, b := range s.buckets {
			if k != key && b.idleSince(cutoff) {
				delete(s.buckets, k)
			}
		}
		s.lastSweep = now
	}
	if bucket, ok := s.buckets[key]; ok {
		return bucket
	}
	bucket = newTokenBucket(s.config.RequestsPerSecond, s.config.BurstSize, now)
	s.buckets[key] = bucket
	return bucket
}

func (s *rateLimiterStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets)
}

// RateLimit returns a rate limiting middleware. Authenticated callers get a
// bucket per user; anonymous ones share a bucket per IP. Mount it after auth
// so route templates and user ids are known.
func RateLimit(cfg RateLimitConfig, routes ...RouteLimit) echo.MiddlewareFunc {
	general := newRateLimiterStore(cfg)
	perRoute := make(map[string]*rateLimiterStore, len(routes))
	for _, r := range routes {
		perRoute[r.Method+" "+r.Path] = newRateLimiterStore(r.Limit)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			store := general
			if s, ok := perRoute[c.Request().Method+" "+c.Path()]; ok {
				store = s
			}

			key := "ip:" + c.RealIP()
			if uid, ok := c.Get("user_id").(int64); ok {
				key = "user:" + strconv.FormatInt(uid, 10)
			}

			limit := strconv.FormatFloat(store.config.RequestsPerSecond, 'f', -1, 64)
			bucket := store.getBucket(key)
			if !bucket.allow(store.now()) {
				retryAfter := bucket.retryAfter()
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				c.Response().Header().Set("X-RateLimit-Limit", limit)
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests,
					fmt.Sprintf("Too many requests, try again in %d seconds", retryAfter))
			}

			c.Response().Header().Set("X-RateLimit-Limit", limit)
			return next(c)
		}
	}
}
