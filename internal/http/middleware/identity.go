// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements UserFromHeader, which lifts the caller identity from
// the X-User-ID header into the Gin context. The bridge sits behind the
// dashboard backend, which authenticates users and forwards the id.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the authenticated user id set by the upstream proxy.
const HeaderUserID = "X-User-ID"

// ctxKeyUserID is read by KeyByUserOrIP and by the handlers.
const ctxKeyUserID = "userID"

// UserFromHeader stores a non-empty X-User-ID header under "userID" in the
// Gin context. An identity already present in the context wins.
func UserFromHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ctxKeyUserID); !ok {
			if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" {
				c.Set(ctxKeyUserID, id)
			}
		}
		c.Next()
	}
}

// UserID returns the identity stored by UserFromHeader, or "".
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
