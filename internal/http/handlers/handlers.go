// Admin HTTP handlers.
//
// This file holds the service contracts the handlers depend on, the Handlers
// wiring, and small shared helpers (identity and pagination). Endpoints live
// in integration_handler.go, activity_handler.go and automation_handler.go.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/http/middleware"
	"github.com/tbourn/inbound-bridge/internal/pollers"
	"github.com/tbourn/inbound-bridge/internal/services"
	"github.com/tbourn/inbound-bridge/internal/utils"
)

//
// Service contracts (context-aware)
//

// IntegrationService lists and disconnects a user's credentials.
type IntegrationService interface {
	List(ctx context.Context, userID string) ([]services.IntegrationStatus, error)
	Disconnect(ctx context.Context, userID string, platform domain.Platform) error
}

// ActivityService pages through the audit feed.
type ActivityService interface {
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.AuditEntry, int64, error)
	// Stats returns the entry count and newest timestamp for ETags.
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
}

// AutomationGate reads a user's automation configuration.
type AutomationGate interface {
	Config(ctx context.Context, userID string, kind domain.AutomationKind) (*domain.Automation, error)
}

// ChatRunner runs the chat poller for a single user.
type ChatRunner interface {
	PollUser(ctx context.Context, userID string) error
}

// MailRunner runs the mail poller for a single user, gate included.
type MailRunner interface {
	RunNow(ctx context.Context, userID string) (pollers.MailRun, error)
}

//
// Handler wiring
//

// Handlers groups the admin endpoints.
type Handlers struct {
	integrations IntegrationService
	activity     ActivityService
	gate         AutomationGate
	chat         ChatRunner
	mail         MailRunner
}

// New constructs Handlers bound to the given services.
func New(integrations IntegrationService, activity ActivityService, gate AutomationGate, chat ChatRunner, mail MailRunner) *Handlers {
	return &Handlers{
		integrations: integrations,
		activity:     activity,
		gate:         gate,
		chat:         chat,
		mail:         mail,
	}
}

// userID returns the caller identity set by middleware.UserFromHeader. When
// absent it writes a 401 and returns "".
func userID(c *gin.Context) string {
	uid := middleware.UserID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing "+middleware.HeaderUserID+" header")
	}
	return uid
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.BoundedInt(c.Query("page"), defaultPage, 1, 0)
	pageSize = utils.BoundedInt(c.Query("page_size"), defaultPageSize, 1, maxPageSize)
	return
}
