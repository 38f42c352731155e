// Package services – IntegrationService
//
// IntegrationService backs the dashboard's integration view: connection
// state per platform, and disconnect.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/repo"
)

// IntegrationStatus is the public view of one credential record. Secrets
// are never included.
type IntegrationStatus struct {
	Platform          domain.Platform     `json:"platform"`
	Connected         bool                `json:"connected"`
	ReconnectRequired bool                `json:"reconnect_required"`
	Capabilities      []domain.Capability `json:"capabilities,omitempty"`
	LastError         string              `json:"last_error,omitempty"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// IntegrationService lists and disconnects a user's credentials.
type IntegrationService struct {
	DB *gorm.DB
}

// List returns the status of every credential record the user owns.
func (s *IntegrationService) List(ctx context.Context, userID string) ([]IntegrationStatus, error) {
	creds, err := repo.ListCredentials(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	out := make([]IntegrationStatus, 0, len(creds))
	for _, c := range creds {
		out = append(out, IntegrationStatus{
			Platform:          c.Platform,
			Connected:         c.Connected,
			ReconnectRequired: c.ReconnectRequired,
			Capabilities:      c.CapabilitySet(),
			LastError:         c.LastError,
			UpdatedAt:         c.UpdatedAt,
		})
	}
	return out, nil
}

// Disconnect clears the secrets of (userID, platform) and keeps the row.
func (s *IntegrationService) Disconnect(ctx context.Context, userID string, platform domain.Platform) error {
	if !platform.Valid() {
		return ErrUnknownPlatform
	}
	if err := repo.Disconnect(ctx, s.DB, userID, platform); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrIntegrationNotFound
		}
		return err
	}
	_, _ = repo.CreateAudit(ctx, s.DB, userID, platform, "integration_disconnected", domain.AuditInfo, "")
	return nil
}
