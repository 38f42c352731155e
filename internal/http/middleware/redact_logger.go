package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/inbound-bridge/internal/redact"
)

// maxQueryLogLength caps the logged query string in bytes.
const maxQueryLogLength = 2048

// alwaysMasked headers are replaced wholesale, whatever RedactOptions says.
var alwaysMasked = []string{"Authorization", "Cookie", "Set-Cookie"}

// RedactOptions tunes RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are masked in addition to alwaysMasked (case-insensitive).
	MaskHeaders []string
	// QuietPaths are logged at debug instead of info when they succeed.
	// Probes (/health, /metrics) would otherwise drown the access log.
	QuietPaths []string
}

// RedactingLogger attaches the request-scoped logger (request_id, user_id)
// read through LoggerFrom, then writes one access-log line per request.
// Bodies are never logged; query strings, header values and handler errors
// pass through the redact package first. Level: error for 5xx or when
// handlers recorded c.Errors, warn for 4xx, info otherwise.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]bool, len(alwaysMasked)+len(opts.MaskHeaders))
	for _, h := range append(append([]string{}, alwaysMasked...), opts.MaskHeaders...) {
		if h = strings.TrimSpace(h); h != "" {
			masked[http.CanonicalHeaderKey(h)] = true
		}
	}
	quiet := make(map[string]bool, len(opts.QuietPaths))
	for _, p := range opts.QuietPaths {
		quiet[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		scoped := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", UserID(c)).
			Logger()
		c.Set(loggerKey, &scoped)

		c.Next()

		status := c.Writer.Status()
		ev := levelFor(&scoped, status, len(c.Errors) > 0, quiet[c.Request.URL.Path])
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", scrub(c.Errors.String()))
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ev.Str("method", c.Request.Method).
			Str("path", route).
			Str("query", truncate(scrub(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("remote_ip", c.ClientIP()).
			Interface("headers", scrubHeaders(c.Request.Header, masked)).
			Msg("http_request")
	}
}

func levelFor(lg *zerolog.Logger, status int, hasErrors, quiet bool) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError || hasErrors:
		return lg.Error()
	case status >= http.StatusBadRequest:
		return lg.Warn()
	case quiet:
		return lg.Debug()
	default:
		return lg.Info()
	}
}

func scrub(v string) string { return redact.PII(redact.Secret(v)) }

func scrubHeaders(h http.Header, masked map[string]bool) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if masked[http.CanonicalHeaderKey(k)] {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = scrub(strings.Join(vv, ", "))
	}
	return out
}

// truncate cuts s to max bytes and appends an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
