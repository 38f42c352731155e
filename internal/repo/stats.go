package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

// AuditStats returns the number of feed entries for userID and the newest
// CreatedAt among them. When the user has no entries, the returned count is 0
// and latest is nil.
func AuditStats(ctx context.Context, db *gorm.DB, userID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.AuditEntry{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
