// ratelimit.go enforces per-client token-bucket rate limits, returning 429
// when the configured requests-per-minute threshold is exceeded. Two backends
// exist: an in-process limiter for single-instance deployments, and a
// Redis-backed limiter (GCRA) for multi-instance ones.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
	CleanupInterval   time.Duration
}

// DefaultRateLimitConfig returns limits for general API usage.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 300, // activity ingestion is chatty
		BurstSize:         60,
		CleanupInterval:   5 * time.Minute,
	}
}

// AuthRateLimitConfig returns stricter limits for the login endpoint.
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// Limiter is the common surface over the two rate limit backends.
type Limiter interface {
	Allow(c *gin.Context, key string) (allowed bool, remaining int)
	Limit() int
	Stop()
}

// rateLimitEntry tracks the token bucket for a single client.
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter is an in-process token bucket limiter.
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.Mutex
	stopCh  chan struct{}
}

// NewRateLimiter creates an in-process limiter and starts its cleanup loop.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Limit returns the configured requests-per-minute ceiling.
func (rl *RateLimiter) Limit() int {
	return rl.config.RequestsPerMinute
}

// Allow refills the client's bucket and takes one token if available.
func (rl *RateLimiter) Allow(_ *gin.Context, key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.entries[key]
	if !exists {
		rl.entries[key] = &rateLimitEntry{
			tokens:     float64(rl.config.BurstSize) - 1,
			lastUpdate: now,
		}
		return true, rl.config.BurstSize - 1
	}

	elapsed := now.Sub(entry.lastUpdate)
	tokensPerSecond := float64(rl.config.RequestsPerMinute) / 60.0
	entry.tokens = min(float64(rl.config.BurstSize), entry.tokens+elapsed.Seconds()*tokensPerSecond)
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		return true, int(entry.tokens)
	}
	return false, 0
}

// RedisRateLimiter enforces limits shared across instances via redis_rate's
// GCRA algorithm. On Redis failure it fails open: blocking all traffic when
// Redis is down is worse than briefly losing rate limiting.
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	config  RateLimitConfig
}

// NewRedisRateLimiter creates a Redis-backed limiter.
func NewRedisRateLimiter(client *redis.Client, config RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(client),
		config:  config,
	}
}

func (rl *RedisRateLimiter) Allow(c *gin.Context, key string) (bool, int) {
	res, err := rl.limiter.Allow(c.Request.Context(), key, redis_rate.Limit{
		Rate:   rl.config.RequestsPerMinute,
		Burst:  rl.config.BurstSize,
		Period: time.Minute,
	})
	if err != nil {
		slog.Warn("redis rate limit check failed, allowing request", "error", err)
		return true, rl.config.BurstSize
	}
	return res.Allowed > 0, res.Remaining
}

func (rl *RedisRateLimiter) Limit() int {
	return rl.config.RequestsPerMinute
}

func (rl *RedisRateLimiter) Stop() {}

// RateLimitMiddleware rejects requests over the limit with 429.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		allowed, remaining := limiter.Allow(c, key)
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

// rateLimitKey prefers the authenticated user over the client IP so one NAT
// does not exhaust the budget for everyone behind it.
func rateLimitKey(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok && id != "" {
			return "user:" + id
		}
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
