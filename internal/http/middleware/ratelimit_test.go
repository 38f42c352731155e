package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	if key := KeyByUserOrIP()(c); key != "ip:203.0.113.9" {
		t.Fatalf("expected ip-based key; got %q", key)
	}
	c.Set(ctxKeyUserID, "u123")
	if key := KeyByUserOrIP()(c); key != "user:u123" {
		t.Fatalf("expected user-based key; got %q", key)
	}
}

func TestNewRateLimiter_BurstCoercion_AndVisitorReuse(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, KeyByUserOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}
	lim := rl.getVisitor("k1")
	if got := rl.getVisitor("k1"); got != lim {
		t.Fatalf("expected same limiter instance to be reused")
	}
	if got := rl.getVisitor("k2"); got == lim {
		t.Fatalf("expected a separate bucket per key")
	}
}

func TestRateLimiter_getVisitor_EvictsIdle(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyByUserOrIP())
	rl.ttl = time.Nanosecond

	rl.mu.Lock()
	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.lookups = gcEvery - 1
	rl.mu.Unlock()

	_ = rl.getVisitor("new")

	rl.mu.Lock()
	_, existsOld := rl.visitors["old"]
	_, existsNew := rl.visitors["new"]
	rl.mu.Unlock()
	if existsOld || !existsNew {
		t.Fatalf("old=%v new=%v; want eviction of old and creation of new", existsOld, existsNew)
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if IsRateBypass(c) {
		t.Fatalf("expected false by default")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatalf("expected true when set")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("expected false when non-bool stored")
	}
}

func TestRateLimiter_Handler_DenyRetryAfterAndMetric(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Refill once every 10s: the second request must wait ~10s.
	rl := NewRateLimiter(0.1, 1, KeyByUserOrIP())
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header(requestIDHeader, "rid-1"); c.Next() })
	r.Use(UserFromHeader(), rl.Handler())
	r.GET("/activity", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	send := func(user string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/activity", nil)
		req.Header.Set(HeaderUserID, user)
		r.ServeHTTP(w, req)
		return w
	}

	before := testutil.ToFloat64(rateLimited)
	if w := send("U1"); w.Code != http.StatusOK {
		t.Fatalf("first request = %d", w.Code)
	}
	w := send("U1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d", w.Code)
	}
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retry < 9 || retry > 10 {
		t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "too_many_requests" || body["request_id"] != "rid-1" {
		t.Fatalf("unexpected JSON body: %v", body)
	}
	if got := testutil.ToFloat64(rateLimited); got != before+1 {
		t.Fatalf("rate limited counter = %v; want %v", got, before+1)
	}

	// A rejected request does not consume the reservation, and another
	// user has its own bucket.
	if w := send("U2"); w.Code != http.StatusOK {
		t.Fatalf("other user = %d", w.Code)
	}
}

func TestRateLimiter_Handler_ZeroRateAndBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0, 1, KeyByUserOrIP())

	r := gin.New()
	r.Use(BypassRateLimit("/health"), rl.Handler())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/integrations", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := []int{}
	for _, p := range []string{"/integrations", "/integrations", "/health", "/health"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		codes = append(codes, w.Code)
	}
	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusOK, http.StatusOK}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v; want %v", codes, want)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/integrations", nil))
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("zero rate Retry-After = %q", w.Header().Get("Retry-After"))
	}
}
