package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/inbound-bridge/internal/clock"
	"github.com/tbourn/inbound-bridge/internal/repo"
)

// SQLLedger keeps entries in the dedup_entries table. The unique index on
// the key makes Record an atomic check-and-insert.
type SQLLedger struct {
	db        *gorm.DB
	retention time.Duration
	clock     clock.Clock
}

var _ Ledger = (*SQLLedger)(nil)

// NewSQLLedger returns a ledger over db. The table must already be migrated.
func NewSQLLedger(db *gorm.DB, retention time.Duration, clk clock.Clock) *SQLLedger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &SQLLedger{db: db, retention: retention, clock: clk}
}

// now is always UTC: processed_at is stored as UTC text, and SQLite compares
// the bound times as strings, so a local offset would shift the window.
func (l *SQLLedger) now() time.Time { return l.clock.Now().UTC() }

func (l *SQLLedger) cutoff(now time.Time) time.Time { return now.Add(-l.retention) }

// Seen implements Ledger.
func (l *SQLLedger) Seen(ctx context.Context, k Key) (bool, error) {
	_, err := repo.GetDedup(ctx, l.db, repo.DedupKey(k), l.cutoff(l.now()))
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: get: %w", err)
	}
	return true, nil
}

// Record implements Ledger.
func (l *SQLLedger) Record(ctx context.Context, k Key) (bool, error) {
	now := l.now()
	_, err := repo.CreateDedup(ctx, l.db, repo.DedupKey(k), now, l.cutoff(now))
	if errors.Is(err, repo.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: create: %w", err)
	}
	return true, nil
}

// Purge implements Ledger.
func (l *SQLLedger) Purge(ctx context.Context) (int64, error) {
	n, err := repo.PurgeDedup(ctx, l.db, l.cutoff(l.now()))
	if err != nil {
		return 0, fmt.Errorf("ledger: purge: %w", err)
	}
	return n, nil
}
