package pollers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/inbound-bridge/internal/clients/gmail"
	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/redact"
)

// DefaultMailMaxResults bounds how many unread messages one run handles.
const DefaultMailMaxResults = 5

// ErrUserBusy is returned by RunUser when a run for the same user is
// already in progress.
var ErrUserBusy = errors.New("mail run already in progress")

// ErrAutomationInactive is returned by RunNow when the user's mail
// automation is missing or not active.
var ErrAutomationInactive = errors.New("automation is not active")

// MailClient is the subset of the mailbox API the poller needs.
// *gmail.Client satisfies it.
type MailClient interface {
	ListUnread(ctx context.Context, token string, max int) ([]gmail.MessageRef, error)
	GetMessage(ctx context.Context, token, id string) (*gmail.Message, error)
	MarkRead(ctx context.Context, token, id string) error
}

// TokenSource hands out valid access tokens. *services.TokenService
// satisfies it.
type TokenSource interface {
	GetValidToken(ctx context.Context, userID string, capability domain.Capability) (string, error)
}

// MailConfig holds the mail poller settings.
type MailConfig struct {
	WebhookURL      string
	DispatchTimeout time.Duration
	MaxResults      int
}

// MailRun summarizes one user's run.
type MailRun struct {
	Listed     int `json:"listed"`
	Dispatched int `json:"dispatched"`
	Failed     int `json:"failed"`
}

// MailPoller forwards unread mailbox messages of users with an active mail
// automation. A message is marked read only after it was dispatched.
type MailPoller struct {
	Mail     MailClient
	Tokens   TokenSource
	Dispatch Dispatcher
	Gate     Gate
	Config   MailConfig

	mu   sync.Mutex
	busy map[string]struct{}
}

// NewMailPoller wires a MailPoller.
func NewMailPoller(mail MailClient, tokens TokenSource, d Dispatcher, gate Gate, cfg MailConfig) *MailPoller {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMailMaxResults
	}
	return &MailPoller{
		Mail:     mail,
		Tokens:   tokens,
		Dispatch: d,
		Gate:     gate,
		Config:   cfg,
		busy:     make(map[string]struct{}),
	}
}

// Tick runs every active mail automation once.
func (p *MailPoller) Tick(ctx context.Context) {
	autos, err := p.Gate.ListActive(ctx, domain.AutomationMail)
	if err != nil {
		log.Error().Err(err).Str("poller", "mail").Msg("list mail automations failed")
		return
	}
	for _, a := range autos {
		if _, err := p.RunUser(ctx, a.UserID); err != nil {
			ev := log.Warn().Err(err).Str("poller", "mail").Str("user_id", a.UserID)
			if hint := RemediationHint(err); hint != "" {
				ev = ev.Str("hint", hint)
			}
			ev.Msg("mail run failed")
		}
	}
}

// RunNow is the manual trigger: it checks the automation gate and then
// runs userID's mailbox once.
func (p *MailPoller) RunNow(ctx context.Context, userID string) (MailRun, error) {
	a, err := p.Gate.Config(ctx, userID, domain.AutomationMail)
	if err != nil {
		return MailRun{}, err
	}
	if !a.Active() {
		return MailRun{}, ErrAutomationInactive
	}
	return p.RunUser(ctx, userID)
}

// RunUser processes up to MaxResults unread messages of userID. Errors on
// individual messages are logged and counted; only token and listing
// failures are returned.
func (p *MailPoller) RunUser(ctx context.Context, userID string) (MailRun, error) {
	if !p.acquire(userID) {
		return MailRun{}, ErrUserBusy
	}
	defer p.release(userID)

	ctx, span := otel.Tracer("pollers/mail").Start(ctx, "MailPoller.RunUser",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	var run MailRun
	token, err := p.Tokens.GetValidToken(ctx, userID, domain.CapabilityGmail)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token")
		return run, fmt.Errorf("mail token: %w", err)
	}

	refs, err := p.Mail.ListUnread(ctx, token, p.Config.MaxResults)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list")
		return run, fmt.Errorf("list unread: %w", err)
	}
	run.Listed = len(refs)

	logger := log.With().Str("poller", "mail").Str("user_id", userID).Logger()
	for _, ref := range refs {
		if err := p.forward(ctx, userID, token, ref); err != nil {
			run.Failed++
			logger.Warn().Str("message_id", ref.ID).Str("error", redact.Error(err, token)).Msg("mail message not forwarded")
			continue
		}
		run.Dispatched++
	}
	span.SetAttributes(
		attribute.Int("mail.listed", run.Listed),
		attribute.Int("mail.dispatched", run.Dispatched),
		attribute.Int("mail.failed", run.Failed),
	)
	return run, nil
}

func (p *MailPoller) forward(ctx context.Context, userID, token string, ref gmail.MessageRef) error {
	msg, err := p.Mail.GetMessage(ctx, token, ref.ID)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	threadID := msg.ThreadID
	if threadID == "" {
		threadID = ref.ThreadID
	}
	ev := domain.MailEvent{
		UserID:       userID,
		MessageID:    ref.ID,
		ThreadID:     threadID,
		SenderEmail:  msg.SenderEmail(),
		Subject:      msg.Subject(),
		EmailContent: msg.Content(),
	}

	if p.Config.WebhookURL == "" {
		dispatches.WithLabelValues("mail", "failed").Inc()
		return fmt.Errorf("%w: no mail webhook configured", domain.ErrDispatchFailed)
	}
	if _, err := p.Dispatch.Post(ctx, p.Config.WebhookURL, ev, p.Config.DispatchTimeout); err != nil {
		dispatches.WithLabelValues("mail", "failed").Inc()
		return fmt.Errorf("%w: %w", domain.ErrDispatchFailed, err)
	}
	dispatches.WithLabelValues("mail", "ok").Inc()

	// Dispatched but still unread means the next run forwards it again.
	if err := p.Mail.MarkRead(ctx, token, ref.ID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (p *MailPoller) acquire(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.busy[userID]; ok {
		return false
	}
	p.busy[userID] = struct{}{}
	return true
}

func (p *MailPoller) release(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.busy, userID)
}

// RemediationHint maps a mail run failure to an operator hint, or "".
func RemediationHint(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, domain.ErrCredentialMissing):
		return "reconnect the mail integration"
	case errors.Is(err, domain.ErrDecryption):
		return "stored credential is unreadable; reconnect the mail integration"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "has not been used"),
		strings.Contains(msg, "accessNotConfigured"),
		strings.Contains(msg, "is disabled"):
		return "enable the Gmail API for the OAuth client's project"
	case strings.Contains(strings.ToLower(msg), "insufficient"),
		strings.Contains(strings.ToLower(msg), "scope"):
		return "reconnect the account and grant the mail scope"
	}
	return ""
}
