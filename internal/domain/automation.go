package domain

import "time"

// AutomationStatus is the lifecycle state of an automation.
type AutomationStatus string

const (
	AutomationActive   AutomationStatus = "active"
	AutomationPaused   AutomationStatus = "paused"
	AutomationInactive AutomationStatus = "inactive"
)

// AutomationKind names the automation capability a poller consults.
type AutomationKind string

const (
	// AutomationAutoReply answers chat-bot messages.
	AutomationAutoReply AutomationKind = "auto_reply"
	// AutomationMail processes unread mailbox messages.
	AutomationMail AutomationKind = "mail"
)

// Automation is owned by the dashboard; the bridge reads it on every tick
// and only ever writes the usage counters.
type Automation struct {
	ID     string           `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID string           `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_automation_user_kind,priority:1"`
	Kind   AutomationKind   `json:"kind"    gorm:"type:varchar(32);not null;uniqueIndex:ux_automation_user_kind,priority:2;index:idx_automation_kind_status,priority:1"`
	Status AutomationStatus `json:"status"  gorm:"type:varchar(16);not null;default:'inactive';index:idx_automation_kind_status,priority:2;check:status IN ('active','paused','inactive')"`

	// Chat configuration.
	Tone           string `json:"tone"            gorm:"type:varchar(64);not null;default:''"`
	WelcomeMessage string `json:"welcome_message" gorm:"type:text;not null;default:''"`
	KnowledgeBase  string `json:"knowledge_base"  gorm:"type:text;not null;default:''"`

	MessagesSent int64      `json:"messages_sent" gorm:"not null;default:0"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Automation.
func (Automation) TableName() string { return "automations" }

// Active reports whether the automation may run.
func (a *Automation) Active() bool { return a != nil && a.Status == AutomationActive }
