package domain

import "time"

// Audit severities.
const (
	AuditInfo  = "info"
	AuditError = "error"
)

// AuditEntry is one line of the user's activity feed.
type AuditEntry struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_audit_user_created,priority:1"`
	Platform  Platform  `json:"platform"   gorm:"type:varchar(32);not null"`
	Action    string    `json:"action"     gorm:"type:varchar(64);not null"`
	Severity  string    `json:"severity"   gorm:"type:varchar(16);not null;default:'info'"`
	Detail    string    `json:"detail"     gorm:"type:text;not null;default:''"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_audit_user_created,priority:2"`
}

// TableName returns the database table name for AuditEntry.
func (AuditEntry) TableName() string { return "audit_log" }
