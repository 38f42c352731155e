// Package domain defines the persistence models and event shapes shared by
// the repository, service, and poller layers. Models are mapped with GORM.
package domain

import (
	"sort"
	"strings"
	"time"
)

// Platform tags a credential record. At most one record exists per
// (user, platform) pair.
type Platform string

const (
	// PlatformTelegram is a chat-bot credential; its access token is the bot secret.
	PlatformTelegram Platform = "telegram"
	// PlatformGmail is the legacy single-capability mailbox credential.
	PlatformGmail Platform = "gmail"
	// PlatformGoogle is the unified multi-capability OAuth credential.
	PlatformGoogle Platform = "google"
)

// Valid reports whether p is one of the known platform tags.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTelegram, PlatformGmail, PlatformGoogle:
		return true
	}
	return false
}

// Capability is a named permission scope granted through OAuth consent.
type Capability string

const (
	// CapabilityGmail reads and modifies the user's mailbox. It is also the
	// legacy capability served by PlatformGmail records.
	CapabilityGmail Capability = "gmail"
	// CapabilityYouTube uploads to the user's channel.
	CapabilityYouTube Capability = "youtube"
)

// LegacyCapability is the only capability that may fall back to a
// single-capability record.
const LegacyCapability = CapabilityGmail

// Credential is a user-owned credential for one platform. Secrets live only
// inside Blob, sealed by the vault. Disconnecting clears Blob and Connected
// but keeps the row for audit continuity.
type Credential struct {
	ID     string `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID string `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_credential_user_platform,priority:1"`
	// Platform is the enumeration tag (telegram, gmail, google).
	Platform Platform `json:"platform" gorm:"type:varchar(32);not null;uniqueIndex:ux_credential_user_platform,priority:2;index:idx_credential_platform_connected,priority:1"`
	// Capabilities is a comma-separated set, only meaningful on unified records.
	Capabilities string `json:"capabilities" gorm:"type:varchar(255);not null;default:''"`
	// Blob is the sealed JSON Secrets bundle.
	Blob string `json:"-" gorm:"type:text;not null;default:''"`

	Connected         bool      `json:"connected"          gorm:"not null;default:false;index:idx_credential_platform_connected,priority:2"`
	ReconnectRequired bool      `json:"reconnect_required" gorm:"not null;default:false"`
	LastError         string    `json:"last_error,omitempty" gorm:"type:text;not null;default:''"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name for Credential.
func (Credential) TableName() string { return "credentials" }

// CapabilitySet parses the comma-separated Capabilities column.
func (c Credential) CapabilitySet() []Capability {
	if strings.TrimSpace(c.Capabilities) == "" {
		return nil
	}
	parts := strings.Split(c.Capabilities, ",")
	out := make([]Capability, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, Capability(p))
		}
	}
	return out
}

// HasCapability reports whether the record grants capability.
func (c Credential) HasCapability(capability Capability) bool {
	for _, have := range c.CapabilitySet() {
		if have == capability {
			return true
		}
	}
	return false
}

// JoinCapabilities renders a capability set in the stored column form,
// sorted and de-duplicated.
func JoinCapabilities(caps ...Capability) string {
	seen := make(map[string]struct{}, len(caps))
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		s := strings.TrimSpace(string(c))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// Secrets is the plaintext bundle sealed into Credential.Blob.
//
// For telegram records AccessToken holds the bot secret and RefreshToken and
// ExpiresAt are unused.
type Secrets struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time         `json:"expires_at,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
