// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the audit feed
// shown in the dashboard's activity view.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

// CreateAudit appends one entry to userID's activity feed.
func CreateAudit(ctx context.Context, db *gorm.DB, userID string, platform domain.Platform, action, severity, detail string) (*domain.AuditEntry, error) {
	e := &domain.AuditEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Platform:  platform,
		Action:    action,
		Severity:  severity,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// CountAudit returns the number of feed entries for userID.
func CountAudit(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.AuditEntry{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListAuditPage returns a page of userID's feed, newest first.
func ListAuditPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// PurgeAudit deletes entries created at or before cutoff.
func PurgeAudit(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("created_at <= ?", cutoff).Delete(&domain.AuditEntry{})
	return res.RowsAffected, res.Error
}
