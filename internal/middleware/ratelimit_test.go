package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func newLimitedRouter(limiter Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doRequest(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.50:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})
	t.Cleanup(limiter.Stop)
	r := newLimitedRouter(limiter)

	for i := 0; i < 3; i++ {
		if w := doRequest(r); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 1, // negligible refill during the test
		BurstSize:         2,
		CleanupInterval:   time.Minute,
	})
	t.Cleanup(limiter.Stop)
	r := newLimitedRouter(limiter)

	doRequest(r)
	doRequest(r)
	w := doRequest(r)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_SeparateKeysSeparateBuckets(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	t.Cleanup(limiter.Stop)

	if allowed, _ := limiter.Allow(nil, "ip:192.0.2.1"); !allowed {
		t.Error("first request for key A should be allowed")
	}
	if allowed, _ := limiter.Allow(nil, "ip:192.0.2.1"); allowed {
		t.Error("second request for key A should be rejected")
	}
	if allowed, _ := limiter.Allow(nil, "ip:192.0.2.2"); !allowed {
		t.Error("first request for key B should be allowed")
	}
}

func TestRateLimitMiddleware_SetsHeaders(t *testing.T) {
	limiter := NewRateLimiter(DefaultRateLimitConfig())
	t.Cleanup(limiter.Stop)
	r := newLimitedRouter(limiter)

	w := doRequest(r)
	if w.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("X-RateLimit-Limit header not set")
	}
	if w.Header().Get("X-RateLimit-Remaining") == "" {
		t.Error("X-RateLimit-Remaining header not set")
	}
}

func TestRedisRateLimiter_EnforcesLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := NewRedisRateLimiter(client, RateLimitConfig{
		RequestsPerMinute: 2,
		BurstSize:         2,
	})
	r := newLimitedRouter(limiter)

	if w := doRequest(r); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", w.Code)
	}
	if w := doRequest(r); w.Code != http.StatusOK {
		t.Fatalf("second request: status = %d, want 200", w.Code)
	}
	if w := doRequest(r); w.Code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", w.Code)
	}
}

func TestRedisRateLimiter_FailsOpenWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	limiter := NewRedisRateLimiter(client, RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         1,
	})
	r := newLimitedRouter(limiter)

	for i := 0; i < 3; i++ {
		if w := doRequest(r); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 (fail open)", i+1, w.Code)
		}
	}
}

func TestRateLimitKey_PrefersUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("user_id", "U1")

	if key := rateLimitKey(c); key != "user:U1" {
		t.Errorf("key = %q, want user:U1", key)
	}
}
