package pollers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/inbound-bridge/internal/clock"
	"github.com/tbourn/inbound-bridge/internal/ledger"
	"github.com/tbourn/inbound-bridge/internal/repo"
)

// DefaultAuditRetention is how long activity feed entries are kept.
const DefaultAuditRetention = 30 * 24 * time.Hour

// Cleaner purges expired dedup entries and old audit entries.
type Cleaner struct {
	DB             *gorm.DB
	Ledger         ledger.Ledger
	Clock          clock.Clock
	AuditRetention time.Duration
}

// NewCleaner wires a Cleaner. A non-positive retention uses
// DefaultAuditRetention.
func NewCleaner(db *gorm.DB, l ledger.Ledger, clk clock.Clock, auditRetention time.Duration) *Cleaner {
	if clk == nil {
		clk = clock.Real()
	}
	if auditRetention <= 0 {
		auditRetention = DefaultAuditRetention
	}
	return &Cleaner{DB: db, Ledger: l, Clock: clk, AuditRetention: auditRetention}
}

// Tick runs one purge pass. Failures are logged; the next pass retries.
func (c *Cleaner) Tick(ctx context.Context) {
	logger := log.With().Str("poller", "cleanup").Logger()

	if n, err := c.Ledger.Purge(ctx); err != nil {
		logger.Error().Err(err).Msg("purge dedup ledger failed")
	} else if n > 0 {
		logger.Info().Int64("rows", n).Msg("dedup entries purged")
	}

	cutoff := c.Clock.Now().UTC().Add(-c.AuditRetention)
	if n, err := repo.PurgeAudit(ctx, c.DB, cutoff); err != nil {
		logger.Error().Err(err).Msg("purge audit log failed")
	} else if n > 0 {
		logger.Info().Int64("rows", n).Msg("audit entries purged")
	}
}
