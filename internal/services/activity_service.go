// Package services – ActivityService
//
// ActivityService pages through a user's audit feed.
package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/repo"
)

// ActivityService reads the audit feed.
type ActivityService struct {
	DB *gorm.DB
}

// ListPage returns one page of the feed, newest first, and the total count.
// Invalid page or pageSize values fall back to 1 and 20.
func (s *ActivityService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.AuditEntry, int64, error) {
	tr := otel.Tracer("services/ActivityService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountAudit(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.AuditEntry{}, 0, nil
	}
	items, err := repo.ListAuditPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Stats returns the entry count and newest timestamp, used for ETags.
func (s *ActivityService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.AuditStats(ctx, s.DB, userID)
}
