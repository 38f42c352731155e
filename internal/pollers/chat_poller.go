package pollers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/tbourn/inbound-bridge/internal/clients/telegram"
	"github.com/tbourn/inbound-bridge/internal/clock"
	"github.com/tbourn/inbound-bridge/internal/dispatch"
	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/ledger"
	"github.com/tbourn/inbound-bridge/internal/redact"
	"github.com/tbourn/inbound-bridge/internal/repo"
	"github.com/tbourn/inbound-bridge/internal/services"
)

// ChatTransport is the subset of the bot API the poller needs.
// *telegram.Client satisfies it.
type ChatTransport interface {
	GetUpdates(ctx context.Context, token string, offset int64, wait time.Duration) ([]telegram.Update, error)
	DeleteWebhook(ctx context.Context, token string) error
}

// Dispatcher posts one JSON payload. *dispatch.Client satisfies it.
type Dispatcher interface {
	Post(ctx context.Context, url string, payload any, timeout time.Duration) (dispatch.Result, error)
}

// Gate answers automation questions. *services.GateService satisfies it.
type Gate interface {
	Config(ctx context.Context, userID string, kind domain.AutomationKind) (*domain.Automation, error)
	ListActive(ctx context.Context, kind domain.AutomationKind) ([]domain.Automation, error)
	RecordUsage(ctx context.Context, userID string, platform domain.Platform, kind domain.AutomationKind, metric string)
}

// SecretOpener unseals a credential. *services.TokenService satisfies it.
type SecretOpener interface {
	OpenSecrets(ctx context.Context, cred *domain.Credential) (domain.Secrets, error)
}

// ChatConfig holds the chat poller settings.
type ChatConfig struct {
	PrimaryWebhookURL   string
	SecondaryWebhookURL string
	LongPollTimeout     time.Duration
	DispatchTimeout     time.Duration

	// OutboundRPS paces calls per credential; zero disables pacing.
	OutboundRPS   float64
	OutboundBurst int
}

// chatState is the per-credential polling state. mu is held for the whole
// processing of the credential and only ever acquired with TryLock.
type chatState struct {
	mu      sync.Mutex
	cursor  int64
	bound   bool
	limiter *rate.Limiter
}

func (s *chatState) advance(updateID int64) {
	if next := updateID + 1; next > s.cursor {
		s.cursor = next
	}
}

// ChatPoller pulls bot updates for every connected chat credential and
// forwards them to the chat webhooks.
type ChatPoller struct {
	DB        *gorm.DB
	Transport ChatTransport
	Dispatch  Dispatcher
	Gate      Gate
	Ledger    ledger.Ledger
	Secrets   SecretOpener
	Clock     clock.Clock
	Config    ChatConfig

	mu       sync.Mutex
	states   map[string]*chatState
	inFlight map[string]struct{}
}

// NewChatPoller wires a ChatPoller.
func NewChatPoller(db *gorm.DB, transport ChatTransport, d Dispatcher, gate Gate, l ledger.Ledger, secrets SecretOpener, clk clock.Clock, cfg ChatConfig) *ChatPoller {
	if clk == nil {
		clk = clock.Real()
	}
	return &ChatPoller{
		DB:        db,
		Transport: transport,
		Dispatch:  d,
		Gate:      gate,
		Ledger:    l,
		Secrets:   secrets,
		Clock:     clk,
		Config:    cfg,
		states:    make(map[string]*chatState),
		inFlight:  make(map[string]struct{}),
	}
}

// Cursor returns the next update offset for credentialID, or 0 when the
// credential has not been polled yet.
func (p *ChatPoller) Cursor(credentialID string) int64 {
	p.mu.Lock()
	st, ok := p.states[credentialID]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cursor
}

// Tick processes every connected chat credential once, sequentially.
// State of credentials that are no longer connected is dropped, so a
// reconnected bot is bound again from scratch.
func (p *ChatPoller) Tick(ctx context.Context) {
	creds, err := repo.ListConnected(ctx, p.DB, domain.PlatformTelegram)
	if err != nil {
		log.Error().Err(err).Str("poller", "chat").Msg("list chat credentials failed")
		return
	}
	p.prune(creds)
	for i := range creds {
		p.processCredential(ctx, &creds[i])
	}
}

// PollUser runs one pass over userID's connected chat credentials. It is
// the manual "run now" path and shares state with the periodic loop.
func (p *ChatPoller) PollUser(ctx context.Context, userID string) error {
	creds, err := repo.ListConnectedForUser(ctx, p.DB, userID, domain.PlatformTelegram)
	if err != nil {
		return fmt.Errorf("list chat credentials: %w", err)
	}
	for i := range creds {
		p.processCredential(ctx, &creds[i])
	}
	return nil
}

func (p *ChatPoller) state(credentialID string) *chatState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[credentialID]
	if !ok {
		st = &chatState{}
		if p.Config.OutboundRPS > 0 {
			burst := p.Config.OutboundBurst
			if burst < 1 {
				burst = 1
			}
			st.limiter = rate.NewLimiter(rate.Limit(p.Config.OutboundRPS), burst)
		}
		p.states[credentialID] = st
	}
	return st
}

func (p *ChatPoller) prune(live []domain.Credential) {
	keep := make(map[string]struct{}, len(live))
	for _, c := range live {
		keep[c.ID] = struct{}{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.states {
		if _, ok := keep[id]; !ok {
			delete(p.states, id)
		}
	}
}

func (p *ChatPoller) markInFlight(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[key]; busy {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *ChatPoller) clearInFlight(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, key)
}

func (p *ChatPoller) processCredential(ctx context.Context, cred *domain.Credential) {
	logger := log.With().
		Str("poller", "chat").
		Str("user_id", cred.UserID).
		Str("credential_id", cred.ID).
		Logger()

	st := p.state(cred.ID)
	if !st.mu.TryLock() {
		logger.Debug().Msg("credential busy, skipping")
		return
	}
	defer st.mu.Unlock()

	if st.limiter != nil && !st.limiter.Allow() {
		logger.Debug().Msg("outbound budget exhausted, skipping")
		return
	}

	ctx, span := otel.Tracer("pollers/chat").Start(ctx, "ChatPoller.processCredential",
		trace.WithAttributes(
			attribute.String("user.id", cred.UserID),
			attribute.String("credential.id", cred.ID),
		))
	defer span.End()

	sec, err := p.Secrets.OpenSecrets(ctx, cred)
	if err != nil {
		logger.Warn().Err(err).Msg("open chat credential failed")
		return
	}
	token := sec.AccessToken
	if token == "" {
		logger.Warn().Msg("chat credential has no bot token")
		return
	}

	if !st.bound {
		if err := p.Transport.DeleteWebhook(ctx, token); err != nil {
			logger.Warn().Str("error", redact.Error(err, token)).Msg("switch to pull mode failed")
			return
		}
		st.bound = true
		st.cursor = 0
		logger.Info().Msg("chat credential bound")
	}

	auto, err := p.Gate.Config(ctx, cred.UserID, domain.AutomationAutoReply)
	if err != nil && !errors.Is(err, services.ErrAutomationNotFound) {
		logger.Error().Err(err).Msg("read automation failed")
		return
	}
	active := auto.Active()

	wait := p.Config.LongPollTimeout
	if !active {
		wait = 0
	}
	ups, err := p.Transport.GetUpdates(ctx, token, st.cursor, wait)
	if err != nil {
		if errors.Is(err, telegram.ErrConflict) {
			logger.Warn().Msg("webhook conflict, re-asserting pull mode")
			if derr := p.Transport.DeleteWebhook(ctx, token); derr != nil {
				logger.Warn().Str("error", redact.Error(derr, token)).Msg("re-assert pull mode failed")
			}
			return
		}
		logger.Warn().Str("error", redact.Error(err, token)).Msg("fetch updates failed")
		return
	}
	span.SetAttributes(attribute.Int("updates.count", len(ups)), attribute.Bool("automation.active", active))

	for _, u := range ups {
		if !active {
			updates.WithLabelValues(outcomeDrained).Inc()
		} else {
			outcome := p.handleUpdate(ctx, logger, cred, token, auto, u)
			updates.WithLabelValues(outcome).Inc()
		}
		st.advance(u.UpdateID)
	}
}

func (p *ChatPoller) handleUpdate(ctx context.Context, logger zerolog.Logger, cred *domain.Credential, token string, auto *domain.Automation, u telegram.Update) string {
	logger = logger.With().Int64("update_id", u.UpdateID).Logger()

	if u.FromBot() {
		return outcomeBot
	}
	m := u.Msg()
	if m == nil {
		return outcomeIgnored
	}

	key := ledger.Key{
		UserID:         cred.UserID,
		Platform:       domain.PlatformTelegram,
		ConversationID: strconv.FormatInt(m.Chat.ID, 10),
		MessageID:      strconv.FormatInt(m.MessageID, 10),
	}
	ks := key.String()
	if !p.markInFlight(ks) {
		return outcomeInFlight
	}
	defer p.clearInFlight(ks)

	seen, err := p.Ledger.Seen(ctx, key)
	if err != nil {
		// Forward anyway; the cursor keeps the transport from redelivering.
		logger.Warn().Err(err).Msg("ledger lookup failed")
	}
	if seen {
		return outcomeDuplicate
	}

	ev := domain.ChatEvent{
		Source: domain.PlatformTelegram,
		UserID: cred.UserID,
		Update: u.Raw,
		Automation: domain.ChatAutomationConfig{
			Tone:           auto.Tone,
			WelcomeMessage: auto.WelcomeMessage,
			KnowledgeBase:  auto.KnowledgeBase,
		},
		Tracking: domain.ChatTracking{
			CredentialID: cred.ID,
			UpdateID:     u.UpdateID,
			ChatID:       key.ConversationID,
			MessageID:    key.MessageID,
		},
	}

	if err := p.dispatch(ctx, cred.UserID, token, ev); err != nil {
		detail := redact.Error(err, token)
		logger.Warn().Str("error", detail).Msg("chat dispatch failed")
		if _, aerr := repo.CreateAudit(ctx, p.DB, cred.UserID, domain.PlatformTelegram, "dispatch_failed", domain.AuditError, detail); aerr != nil {
			logger.Error().Err(aerr).Msg("write audit entry failed")
		}
		return outcomeFailed
	}

	if _, err := p.Ledger.Record(ctx, key); err != nil {
		logger.Error().Err(err).Msg("ledger record failed")
	}
	p.Gate.RecordUsage(ctx, cred.UserID, domain.PlatformTelegram, domain.AutomationAutoReply, "message_sent")
	return outcomeDispatched
}

// dispatch tries the primary and then the secondary webhook. A 404 moves
// on to the next candidate; any other error ends the attempt.
func (p *ChatPoller) dispatch(ctx context.Context, userID, token string, ev domain.ChatEvent) error {
	var lastErr error
	for _, base := range []string{p.Config.PrimaryWebhookURL, p.Config.SecondaryWebhookURL} {
		if base == "" {
			continue
		}
		target, err := chatWebhookURL(base, token, userID)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = p.Dispatch.Post(ctx, target, ev, p.Config.DispatchTimeout)
		if err == nil {
			dispatches.WithLabelValues("chat", "ok").Inc()
			return nil
		}
		lastErr = err
		if !dispatch.IsNotFound(err) {
			break
		}
		dispatches.WithLabelValues("chat", "not_found").Inc()
	}
	dispatches.WithLabelValues("chat", "failed").Inc()
	if lastErr == nil {
		return fmt.Errorf("%w: no chat webhook configured", domain.ErrDispatchFailed)
	}
	return fmt.Errorf("%w: %w", domain.ErrDispatchFailed, lastErr)
}

func chatWebhookURL(base, token, userID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse webhook url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("userId", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
