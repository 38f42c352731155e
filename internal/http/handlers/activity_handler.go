// Activity HTTP handler.
//
//   - GET /activity (audit feed, paginated, ETag support)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

// ListActivityResponse wraps a page of audit entries.
type ListActivityResponse struct {
	Entries    []domain.AuditEntry `json:"entries"`
	Pagination Pagination          `json:"pagination"`
}

// ListActivity godoc
// @ID          listActivity
// @Summary     List the caller's activity feed
// @Description Returns a page of audit entries, newest first. A weak ETag derived
// @Description from the entry count and newest timestamp allows revalidation.
// @Tags        Activity
// @Produce     json
//
// @Param       X-User-ID      header  string  true   "User ID that owns the feed"  example(user123)
// @Param       If-None-Match  header  string  false  "ETag from a previous response"
// @Param       page           query   int     false  "Page number (1-based)"  minimum(1) default(1)
// @Param       page_size      query   int     false  "Page size"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListActivityResponse  "Activity page"
// @Success     304  "Not modified"
// @Failure     401  {object}  handlers.ErrorResponse         "Missing X-User-ID"
// @Failure     500  {object}  handlers.ErrorResponse         "Internal error"
// @Router      /activity [get]
func (h *Handlers) ListActivity(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	if uid == "" {
		return
	}
	page, pageSize := clampPagination(c)

	// Revalidate instead of the router-wide no-store.
	c.Header("Cache-Control", "private, no-cache")
	c.Writer.Header().Del("Pragma")
	c.Writer.Header().Del("Expires")

	// ETag pre-check (best effort).
	if count, maxTS, err := h.activity.Stats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"activity:%s:%d:%d:%d:%d"`, uid, count, ts, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.activity.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListActivityResponse{
		Entries:    items,
		Pagination: newPagination(page, pageSize, total),
	})
}
