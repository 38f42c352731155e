package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

func TestAuditStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	_, _, err := AuditStats(context.Background(), db, "u1")
	if err == nil {
		t.Fatalf("expected error due to missing audit_log table")
	}
}

func TestAuditStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, &domain.AuditEntry{})
	count, latest, err := AuditStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("AuditStats error: %v", err)
	}
	if count != 0 || latest != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, latest)
	}
}

func TestAuditStats_Success_FilterAndMax(t *testing.T) {
	db := newTestDB(t, &domain.AuditEntry{})

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max for u1
	t3 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)   // other user, newer
	rows := []domain.AuditEntry{
		{ID: "a1", UserID: "u1", Platform: domain.PlatformTelegram, Action: "dispatch_failed", Severity: domain.AuditError, CreatedAt: t1},
		{ID: "a2", UserID: "u1", Platform: domain.PlatformTelegram, Action: "dispatch_failed", Severity: domain.AuditError, CreatedAt: t2},
		{ID: "a3", UserID: "u2", Platform: domain.PlatformGmail, Action: "x", Severity: domain.AuditInfo, CreatedAt: t3},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	count, latest, err := AuditStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("AuditStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d; want 2", count)
	}
	if latest == nil || !latest.Equal(t2) {
		t.Fatalf("latest = %v; want %v", latest, t2)
	}
}
