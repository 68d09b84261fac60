package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/metrics"
	"github.com/prohub/nexus/backend/internal/util"
)

// SessionHeader carries the presence session id so heartbeats can be
// limited per tab rather than per NAT address
const SessionHeader = "X-Session-ID"

// HeartbeatSessionsPerIP is how many sessions one address may run at the
// per-session heartbeat rate before the address cap applies
const HeartbeatSessionsPerIP = 8

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc identifies the caller; defaults to the client IP
	KeyFunc func(c *gin.Context) string
	// Scope separates shared counters of limiters stacked on one route
	Scope string
}

func clientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// SessionKey limits by address and presence session when the client sends
// one, else by address alone
func SessionKey(c *gin.Context) string {
	key := "ip:" + c.ClientIP()
	if id := c.GetHeader(SessionHeader); id != "" {
		key += "|session:" + id
	}
	return key
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   100,
		Window:  time.Minute,
		KeyFunc: clientIPKey,
	}
}

// HeartbeatRateLimitConfig allows perMinute heartbeats per session.
// Clients beat every 30s plus visibility changes, so small values suffice.
func HeartbeatRateLimitConfig(perMinute int) RateLimitConfig {
	return RateLimitConfig{
		Limit:   perMinute,
		Window:  time.Minute,
		KeyFunc: SessionKey,
	}
}

// HeartbeatIPRateLimitConfig caps heartbeats per address across all of its
// sessions, so rotating the session header does not lift the limit
func HeartbeatIPRateLimitConfig(perMinute int) RateLimitConfig {
	return RateLimitConfig{
		Limit:   perMinute * HeartbeatSessionsPerIP,
		Window:  time.Minute,
		KeyFunc: clientIPKey,
		Scope:   "ip",
	}
}

// ClassifyRateLimitConfig returns limits for the standalone classify endpoint
func ClassifyRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   30,
		Window:  time.Minute,
		KeyFunc: clientIPKey,
	}
}

// TokenBucket for rate limiting
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request is allowed based on token availability
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// GetRetryAfter returns seconds to wait before next request
func (tb *TokenBucket) GetRetryAfter() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.tokens < 1 {
		timeToToken := (1 - tb.tokens) / tb.refillRate
		return int(timeToToken) + 1
	}
	return 0
}

// idle reports whether the bucket has been full for at least d
func (tb *TokenBucket) idle(d time.Duration) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return time.Since(tb.lastRefill) >= d
}

// RateLimiter keeps one token bucket per caller key
type RateLimiter struct {
	buckets map[string]*TokenBucket
	config  RateLimitConfig
	mu      sync.Mutex
}

func newRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = clientIPKey
	}
	return &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
	}
}

// NewRateLimiter creates an in-process rate limiting middleware
func NewRateLimiter(config RateLimitConfig) gin.HandlerFunc {
	rl := newRateLimiter(config)
	go rl.cleanupRoutine(time.NewTicker(time.Minute))

	return func(c *gin.Context) {
		key := rl.config.KeyFunc(c)
		if !rl.Allow(key) {
			rejectRateLimited(c, rl.config.Limit, rl.GetRetryAfter(key))
			return
		}
		c.Next()
	}
}

// Allow checks if key is allowed to make a request
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	bucket, exists := rl.buckets[key]
	if !exists {
		refillRate := float64(rl.config.Limit) / rl.config.Window.Seconds()
		bucket = NewTokenBucket(float64(rl.config.Limit), refillRate)
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	return bucket.Allow()
}

// GetRetryAfter gets retry-after seconds for key
func (rl *RateLimiter) GetRetryAfter(key string) int {
	rl.mu.Lock()
	bucket, exists := rl.buckets[key]
	rl.mu.Unlock()
	if !exists {
		return 1
	}
	return bucket.GetRetryAfter()
}

// cleanupRoutine drops buckets untouched for a full window; they refill to
// capacity in that time so recreating them is equivalent
func (rl *RateLimiter) cleanupRoutine(ticker *time.Ticker) {
	for range ticker.C {
		rl.mu.Lock()
		for key, bucket := range rl.buckets {
			if bucket.idle(rl.config.Window) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

func rejectRateLimited(c *gin.Context, limit, retryAfter int) {
	metrics.Get().RateLimitExceededTotal.WithLabelValues(c.FullPath(), c.Request.Method).Inc()
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", "0")
	util.RespondWithAPIError(c, errors.RateLimited("rate limit exceeded"))
	c.Abort()
}
