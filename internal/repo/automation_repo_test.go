package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

func TestSaveAutomation_InsertAndUpdate(t *testing.T) {
	db := newTestDB(t, &domain.Automation{})
	ctx := context.Background()

	a := &domain.Automation{UserID: "u1", Kind: domain.AutomationAutoReply, Status: domain.AutomationActive, Tone: "friendly"}
	if err := SaveAutomation(ctx, db, a); err != nil {
		t.Fatalf("SaveAutomation: %v", err)
	}

	upd := &domain.Automation{UserID: "u1", Kind: domain.AutomationAutoReply, Status: domain.AutomationPaused, Tone: "formal"}
	if err := SaveAutomation(ctx, db, upd); err != nil {
		t.Fatalf("SaveAutomation update: %v", err)
	}

	got, err := GetAutomation(ctx, db, "u1", domain.AutomationAutoReply)
	if err != nil {
		t.Fatalf("GetAutomation: %v", err)
	}
	if got.Status != domain.AutomationPaused || got.Tone != "formal" {
		t.Fatalf("update not applied: %+v", got)
	}

	if _, err := GetAutomation(ctx, db, "u1", domain.AutomationMail); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAutomationsByStatus(t *testing.T) {
	db := newTestDB(t, &domain.Automation{})
	ctx := context.Background()

	seed := []*domain.Automation{
		{UserID: "u1", Kind: domain.AutomationMail, Status: domain.AutomationActive},
		{UserID: "u2", Kind: domain.AutomationMail, Status: domain.AutomationPaused},
		{UserID: "u3", Kind: domain.AutomationAutoReply, Status: domain.AutomationActive},
	}
	for _, a := range seed {
		if err := SaveAutomation(ctx, db, a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	got, err := ListAutomationsByStatus(ctx, db, domain.AutomationMail, domain.AutomationActive)
	if err != nil {
		t.Fatalf("ListAutomationsByStatus: %v", err)
	}
	if len(got) != 1 || got[0].UserID != "u1" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestIncrementMessagesSent(t *testing.T) {
	db := newTestDB(t, &domain.Automation{})
	ctx := context.Background()
	if err := SaveAutomation(ctx, db, &domain.Automation{UserID: "u1", Kind: domain.AutomationAutoReply, Status: domain.AutomationActive}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := IncrementMessagesSent(ctx, db, "u1", domain.AutomationAutoReply, 1, at); err != nil {
			t.Fatalf("IncrementMessagesSent: %v", err)
		}
	}
	got, _ := GetAutomation(ctx, db, "u1", domain.AutomationAutoReply)
	if got.MessagesSent != 3 {
		t.Fatalf("MessagesSent = %d; want 3", got.MessagesSent)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(at) {
		t.Fatalf("LastRunAt = %v; want %v", got.LastRunAt, at)
	}
}
