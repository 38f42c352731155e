// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Automation
// model. The dashboard owns these rows; the bridge reads them and bumps the
// usage counters.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

// GetAutomation fetches the automation of kind owned by userID, or ErrNotFound.
func GetAutomation(ctx context.Context, db *gorm.DB, userID string, kind domain.AutomationKind) (*domain.Automation, error) {
	var a domain.Automation
	err := db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAutomationsByStatus returns automations of kind in status, oldest first.
func ListAutomationsByStatus(ctx context.Context, db *gorm.DB, kind domain.AutomationKind, status domain.AutomationStatus) ([]domain.Automation, error) {
	var out []domain.Automation
	err := db.WithContext(ctx).
		Where("kind = ? AND status = ?", kind, status).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// SaveAutomation inserts or updates the (user, kind) automation with a's
// status and configuration.
func SaveAutomation(ctx context.Context, db *gorm.DB, a *domain.Automation) error {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "tone", "welcome_message", "knowledge_base", "updated_at"}),
	}).Create(a).Error
}

// IncrementMessagesSent bumps the usage counter of (userID, kind) and stamps
// LastRunAt. Missing automations are ignored.
func IncrementMessagesSent(ctx context.Context, db *gorm.DB, userID string, kind domain.AutomationKind, by int64, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Automation{}).
		Where("user_id = ? AND kind = ?", userID, kind).
		Updates(map[string]any{
			"messages_sent": gorm.Expr("messages_sent + ?", by),
			"last_run_at":   at.UTC(),
		}).Error
}
