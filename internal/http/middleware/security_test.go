package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(t *testing.T, opt SecurityOptions, pre gin.HandlerFunc, h gin.HandlerFunc, req *http.Request) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/x", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecurity(t, SecurityOptions{}, nil,
		func(c *gin.Context) { c.Status(http.StatusOK) },
		httptest.NewRequest(http.MethodGet, "/x", nil))

	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security", "Access-Control-Expose-Headers"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_ExposeRequestID(t *testing.T) {
	cases := []struct {
		name     string
		existing string
		want     string
	}{
		{"fresh", "", "X-Request-ID"},
		{"append", "ETag", "ETag, X-Request-ID"},
		{"no duplicate", "X-Request-ID, ETag", "X-Request-ID, ETag"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pre := func(c *gin.Context) {
				c.Header(requestIDHeader, "rid-1")
				if tc.existing != "" {
					c.Header("Access-Control-Expose-Headers", tc.existing)
				}
				c.Next()
			}
			h := serveSecurity(t, SecurityOptions{}, pre,
				func(c *gin.Context) { c.Status(http.StatusOK) },
				httptest.NewRequest(http.MethodGet, "/x", nil))
			if got := h.Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSecurityHeaders_NoStorePolicyAndHSTS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.TLS = &tls.ConnectionState{}
	h := serveSecurity(t, SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour, NoStore: true, EnablePolicy: true}, nil,
		func(c *gin.Context) { c.Status(http.StatusOK) }, req)

	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("cache headers: %#v", h)
	}
	if h.Get("X-Permitted-Cross-Domain-Policies") != "none" || h.Get("Permissions-Policy") == "" {
		t.Fatalf("policy headers: %#v", h)
	}
	if got := h.Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("hsts = %q", got)
	}
}

func TestSecurityHeaders_HSTSDefaultAgeAndPlainHTTP(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true}

	plain := serveSecurity(t, opt, nil, func(c *gin.Context) { c.Status(http.StatusOK) },
		httptest.NewRequest(http.MethodGet, "/x", nil))
	if plain.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS on plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	proxied := serveSecurity(t, opt, nil, func(c *gin.Context) { c.Status(http.StatusOK) }, req)
	if got := proxied.Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("hsts = %q", got)
	}
}

func TestSecurityHeaders_HandlerOverridesCacheControl(t *testing.T) {
	h := serveSecurity(t, SecurityOptions{NoStore: true}, nil,
		func(c *gin.Context) {
			c.Header("Cache-Control", "private, no-cache")
			c.Status(http.StatusOK)
		},
		httptest.NewRequest(http.MethodGet, "/x", nil))
	if got := h.Get("Cache-Control"); got != "private, no-cache" {
		t.Fatalf("Cache-Control = %q", got)
	}
}
