// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for DedupEntry, the
// SQL backing of the dedup ledger.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// DedupKey identifies one forwarded inbound message.
type DedupKey struct {
	UserID         string
	Platform       domain.Platform
	ConversationID string
	MessageID      string
}

func (k DedupKey) where(db *gorm.DB) *gorm.DB {
	return db.Where("message_id = ? AND conversation_id = ? AND user_id = ? AND platform = ?",
		k.MessageID, k.ConversationID, k.UserID, k.Platform)
}

// GetDedup returns the entry for key processed after since, or ErrNotFound.
// Entries at or before since are treated as expired. Times are compared in
// UTC whatever location the caller passes.
func GetDedup(ctx context.Context, db *gorm.DB, key DedupKey, since time.Time) (*domain.DedupEntry, error) {
	var rec domain.DedupEntry
	err := key.where(db.WithContext(ctx)).
		Where("processed_at > ?", since.UTC()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateDedup inserts an entry for key processed at now. Expired rows for the
// same key (processed at or before since) are replaced in the same
// transaction. A live row yields ErrDuplicate, which makes this an atomic
// check-and-insert under the unique index.
func CreateDedup(ctx context.Context, db *gorm.DB, key DedupKey, now, since time.Time) (*domain.DedupEntry, error) {
	rec := &domain.DedupEntry{
		ID:             uuid.NewString(),
		MessageID:      key.MessageID,
		ConversationID: key.ConversationID,
		UserID:         key.UserID,
		Platform:       key.Platform,
		ProcessedAt:    now.UTC(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := key.where(tx).Where("processed_at <= ?", since.UTC()).Delete(&domain.DedupEntry{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeDedup deletes entries processed at or before cutoff and returns the
// number of rows removed.
func PurgeDedup(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("processed_at <= ?", cutoff.UTC()).Delete(&domain.DedupEntry{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation detects unique-constraint errors across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
