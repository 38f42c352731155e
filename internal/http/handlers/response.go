// Package handlers implements the admin API of the bridge: integration
// listing and disconnect, the activity feed, and manual automation runs.
//
// Every failure leaves through fail with an ErrorResponse carrying a stable
// code from errors.go:
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "reconnect_required",
//	  "message": "mail credential must be reconnected"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/inbound-bridge/internal/http/middleware"
	"github.com/tbourn/inbound-bridge/internal/redact"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID.
	RequestID string `json:"request_id,omitempty"`
	// Machine-readable, see errors.go.
	Code string `json:"code"`
	// Human-readable and free of tokens or addresses.
	Message string `json:"message"`
}

// fail aborts with an ErrorResponse. Upstream and server failures (>= 500)
// are also logged on the request-scoped logger; the message is scrubbed
// once more in case a caller forgot to.
func fail(c *gin.Context, status int, code, msg string) {
	msg = redact.PII(msg)
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("route", c.FullPath()).
			Str("message", msg).
			Msg("admin api failure")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute and NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
