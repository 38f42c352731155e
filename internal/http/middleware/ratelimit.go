// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the admin API rate limiter: an in-memory token bucket
// per caller (golang.org/x/time/rate) with opportunistic eviction of idle
// buckets. Buckets are process-local; it protects the bridge from a noisy
// dashboard and is not an authorization mechanism.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	// ctxKeyRateBypass marks a request that Handler must not limit.
	ctxKeyRateBypass = "rate.bypass"
	// visitorTTL evicts buckets idle for this long.
	visitorTTL = 10 * time.Minute
	// gcEvery is the number of lookups between eviction sweeps.
	gcEvery = 5000
)

var rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "bridge_http_rate_limited_total",
	Help: "Admin API requests rejected by the rate limiter.",
})

func init() { prometheus.MustRegister(rateLimited) }

// keyFunc maps a request to its bucket, e.g. "user:<id>" or "ip:<addr>".
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the caller identity set by UserFromHeader and
// falls back to the client IP. Prefixes keep the namespaces apart.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. It is safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
}

// NewRateLimiter returns a limiter refilling rps tokens per second into
// buckets of size burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      visitorTTL,
	}
}

// getVisitor returns the bucket for key. Every gcEvery lookups it first
// evicts idle buckets, so a stale bucket is dropped even when it is the one
// being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= gcEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// BypassRateLimit marks requests for the given exact paths so that Handler
// skips them. It must run before Handler.
func BypassRateLimit(paths ...string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := set[c.Request.URL.Path]; ok {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}

// IsRateBypass reports whether BypassRateLimit marked this request.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the per-key limit. A rejected request gets 429, a
// Retry-After rounded up to whole seconds, and
//
//	{ "request_id": "...", "code": "too_many_requests", "message": "rate limit exceeded" }
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.getVisitor(rl.keyFn(c))
		now := time.Now()
		res := lim.ReserveN(now, 1)
		if res.OK() && res.DelayFrom(now) == 0 {
			c.Next()
			return
		}

		retry := 1
		if res.OK() {
			retry = int(math.Ceil(res.DelayFrom(now).Seconds()))
			res.CancelAt(now)
		}
		if retry < 1 {
			retry = 1
		}
		rateLimited.Inc()
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
