package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/inbound-bridge/internal/clock"
	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/repo"
)

type trackCall struct {
	userID   string
	platform domain.Platform
	metric   string
	value    int
}

type chanTracker struct{ calls chan trackCall }

func (c *chanTracker) Track(_ context.Context, userID string, platform domain.Platform, metric string, value int) {
	c.calls <- trackCall{userID, platform, metric, value}
}

func seedAutomation(t *testing.T, svc *GateService, userID string, kind domain.AutomationKind, status domain.AutomationStatus) {
	t.Helper()
	a := &domain.Automation{UserID: userID, Kind: kind, Status: status, Tone: "friendly", WelcomeMessage: "hello"}
	if err := repo.SaveAutomation(context.Background(), svc.DB, a); err != nil {
		t.Fatalf("seed automation: %v", err)
	}
}

func TestGate_Allowed(t *testing.T) {
	svc := NewGateService(newTestDB(t), nil, clock.Fake(epoch))
	ctx := context.Background()
	seedAutomation(t, svc, "U1", domain.AutomationAutoReply, domain.AutomationActive)
	seedAutomation(t, svc, "U2", domain.AutomationAutoReply, domain.AutomationPaused)
	seedAutomation(t, svc, "U3", domain.AutomationAutoReply, domain.AutomationInactive)

	cases := map[string]bool{"U1": true, "U2": false, "U3": false, "missing": false}
	for user, want := range cases {
		got, err := svc.Allowed(ctx, user, domain.AutomationAutoReply)
		if err != nil {
			t.Fatalf("Allowed(%s): %v", user, err)
		}
		if got != want {
			t.Fatalf("Allowed(%s) = %v; want %v", user, got, want)
		}
	}
}

func TestGate_NoCachingAcrossCalls(t *testing.T) {
	svc := NewGateService(newTestDB(t), nil, clock.Fake(epoch))
	ctx := context.Background()
	seedAutomation(t, svc, "U1", domain.AutomationAutoReply, domain.AutomationActive)

	if ok, _ := svc.Allowed(ctx, "U1", domain.AutomationAutoReply); !ok {
		t.Fatal("expected active")
	}
	seedAutomation(t, svc, "U1", domain.AutomationAutoReply, domain.AutomationPaused)
	if ok, _ := svc.Allowed(ctx, "U1", domain.AutomationAutoReply); ok {
		t.Fatal("pause must take effect on the next call")
	}
}

func TestGate_ConfigAndListActive(t *testing.T) {
	svc := NewGateService(newTestDB(t), nil, clock.Fake(epoch))
	ctx := context.Background()
	seedAutomation(t, svc, "U1", domain.AutomationMail, domain.AutomationActive)
	seedAutomation(t, svc, "U2", domain.AutomationMail, domain.AutomationPaused)

	a, err := svc.Config(ctx, "U1", domain.AutomationMail)
	if err != nil || a.Tone != "friendly" || a.WelcomeMessage != "hello" {
		t.Fatalf("Config = (%+v, %v)", a, err)
	}
	if _, err := svc.Config(ctx, "U9", domain.AutomationMail); !errors.Is(err, ErrAutomationNotFound) {
		t.Fatalf("expected ErrAutomationNotFound, got %v", err)
	}

	active, err := svc.ListActive(ctx, domain.AutomationMail)
	if err != nil || len(active) != 1 || active[0].UserID != "U1" {
		t.Fatalf("ListActive = (%+v, %v)", active, err)
	}
}

func TestGate_RecordUsage(t *testing.T) {
	tr := &chanTracker{calls: make(chan trackCall, 1)}
	svc := NewGateService(newTestDB(t), tr, clock.Fake(epoch))
	ctx := context.Background()
	seedAutomation(t, svc, "U1", domain.AutomationAutoReply, domain.AutomationActive)

	svc.RecordUsage(ctx, "U1", domain.PlatformTelegram, domain.AutomationAutoReply, "message_sent")

	select {
	case c := <-tr.calls:
		if c != (trackCall{"U1", domain.PlatformTelegram, "message_sent", 1}) {
			t.Fatalf("unexpected track call %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tracker was not called")
	}

	a, _ := svc.Config(ctx, "U1", domain.AutomationAutoReply)
	if a.MessagesSent != 1 {
		t.Fatalf("MessagesSent = %d; want 1", a.MessagesSent)
	}
	if a.LastRunAt == nil || !a.LastRunAt.Equal(epoch) {
		t.Fatalf("LastRunAt = %v; want %v", a.LastRunAt, epoch)
	}
}
