// Package services – GateService
//
// GateService is the read path into automation records. It answers whether a
// user's automation of a given kind may run right now and returns its
// configuration. Records are read on every call so a pause in the dashboard
// takes effect on the next tick.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/inbound-bridge/internal/clock"
	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/repo"
)

// UsageTracker receives lightweight usage metrics. *dispatch.Tracker
// satisfies it.
type UsageTracker interface {
	Track(ctx context.Context, userID string, platform domain.Platform, metric string, value int)
}

// GateService decides whether automations may run.
type GateService struct {
	DB      *gorm.DB
	Tracker UsageTracker
	Clock   clock.Clock
}

// NewGateService constructs a GateService. tracker may be nil.
func NewGateService(db *gorm.DB, tracker UsageTracker, clk clock.Clock) *GateService {
	if clk == nil {
		clk = clock.Real()
	}
	return &GateService{DB: db, Tracker: tracker, Clock: clk}
}

// Allowed reports whether userID's automation of kind is active. A missing
// record is not an error; it is simply not allowed.
func (s *GateService) Allowed(ctx context.Context, userID string, kind domain.AutomationKind) (bool, error) {
	a, err := s.Config(ctx, userID, kind)
	if err != nil {
		if errors.Is(err, ErrAutomationNotFound) {
			return false, nil
		}
		return false, err
	}
	return a.Active(), nil
}

// Config returns the automation record, or ErrAutomationNotFound.
func (s *GateService) Config(ctx context.Context, userID string, kind domain.AutomationKind) (*domain.Automation, error) {
	a, err := repo.GetAutomation(ctx, s.DB, userID, kind)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAutomationNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListActive returns every active automation of kind.
func (s *GateService) ListActive(ctx context.Context, kind domain.AutomationKind) ([]domain.Automation, error) {
	return repo.ListAutomationsByStatus(ctx, s.DB, kind, domain.AutomationActive)
}

// RecordUsage bumps the automation's messages_sent counter and forwards the
// metric to the tracker without waiting for it. Failures are logged only.
func (s *GateService) RecordUsage(ctx context.Context, userID string, platform domain.Platform, kind domain.AutomationKind, metric string) {
	if err := repo.IncrementMessagesSent(ctx, s.DB, userID, kind, 1, s.Clock.Now()); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("increment usage counter failed")
	}
	if s.Tracker != nil {
		go s.Tracker.Track(context.WithoutCancel(ctx), userID, platform, metric, 1)
	}
}
