// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Credential
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They hold no business logic: sealing and
// token refresh live in the vault and services packages.
//
// Token refresh writes are last-writer-wins: UpdateCredentialBlob overwrites
// the sealed bundle without a version check.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetCredential fetches the record for (userID, platform), or ErrNotFound.
func GetCredential(ctx context.Context, db *gorm.DB, userID string, platform domain.Platform) (*domain.Credential, error) {
	var c domain.Credential
	err := db.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, platform).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConnected returns every connected credential for platform, oldest
// first so processing order is stable across ticks.
func ListConnected(ctx context.Context, db *gorm.DB, platform domain.Platform) ([]domain.Credential, error) {
	var out []domain.Credential
	err := db.WithContext(ctx).
		Where("platform = ? AND connected = ?", platform, true).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListConnectedForUser is ListConnected restricted to one user.
func ListConnectedForUser(ctx context.Context, db *gorm.DB, userID string, platform domain.Platform) ([]domain.Credential, error) {
	var out []domain.Credential
	err := db.WithContext(ctx).
		Where("user_id = ? AND platform = ? AND connected = ?", userID, platform, true).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListCredentials returns all records owned by userID, connected or not.
func ListCredentials(ctx context.Context, db *gorm.DB, userID string) ([]domain.Credential, error) {
	var out []domain.Credential
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("platform asc").
		Find(&out).Error
	return out, err
}

// UpsertCredential creates the (user, platform) record or replaces its sealed
// blob, capabilities and connection flags. It is the write path of a
// successful authorization.
func UpsertCredential(ctx context.Context, db *gorm.DB, userID string, platform domain.Platform, capabilities, blob string) (*domain.Credential, error) {
	now := time.Now().UTC()
	c := &domain.Credential{
		ID:           uuid.NewString(),
		UserID:       userID,
		Platform:     platform,
		Capabilities: strings.TrimSpace(capabilities),
		Blob:         blob,
		Connected:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.Assignments(map[string]any{
			"capabilities":       c.Capabilities,
			"blob":               blob,
			"connected":          true,
			"reconnect_required": false,
			"last_error":         "",
			"updated_at":         now,
		}),
	}).Create(c).Error
	if err != nil {
		return nil, err
	}
	return GetCredential(ctx, db, userID, platform)
}

// UpdateCredentialBlob replaces the sealed bundle of credential id. Returns
// ErrNotFound when no row matched.
func UpdateCredentialBlob(ctx context.Context, db *gorm.DB, id, blob string) error {
	res := db.WithContext(ctx).
		Model(&domain.Credential{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"blob":       blob,
			"last_error": "",
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkReconnectRequired flags credential id as needing re-authorization and
// stores reason for the dashboard.
func MarkReconnectRequired(ctx context.Context, db *gorm.DB, id, reason string) error {
	return db.WithContext(ctx).
		Model(&domain.Credential{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reconnect_required": true,
			"last_error":         reason,
			"updated_at":         time.Now().UTC(),
		}).Error
}

// Disconnect clears the secrets of (userID, platform) and marks it
// disconnected. The row itself is kept.
func Disconnect(ctx context.Context, db *gorm.DB, userID string, platform domain.Platform) error {
	res := db.WithContext(ctx).
		Model(&domain.Credential{}).
		Where("user_id = ? AND platform = ?", userID, platform).
		Updates(map[string]any{
			"blob":               "",
			"connected":          false,
			"reconnect_required": false,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
