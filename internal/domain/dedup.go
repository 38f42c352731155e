package domain

import "time"

// DedupEntry records that an inbound message was forwarded successfully.
// Uniqueness is on (message_id, conversation_id, user_id, platform). Rows
// older than the retention window are logically absent even before they
// are purged.
type DedupEntry struct {
	ID             string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	MessageID      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_dedup_key,priority:1"`
	ConversationID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_dedup_key,priority:2"`
	UserID         string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_dedup_key,priority:3"`
	Platform       Platform  `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_dedup_key,priority:4"`
	ProcessedAt    time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (DedupEntry) TableName() string { return "dedup_entries" }
