package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/inbound-bridge/internal/clients/gmail"
	"github.com/tbourn/inbound-bridge/internal/clients/oauth"
	"github.com/tbourn/inbound-bridge/internal/clients/telegram"
	"github.com/tbourn/inbound-bridge/internal/clock"
	"github.com/tbourn/inbound-bridge/internal/config"
	"github.com/tbourn/inbound-bridge/internal/dispatch"
	httpapi "github.com/tbourn/inbound-bridge/internal/http"
	"github.com/tbourn/inbound-bridge/internal/ledger"
	"github.com/tbourn/inbound-bridge/internal/observability"
	"github.com/tbourn/inbound-bridge/internal/pollers"
	"github.com/tbourn/inbound-bridge/internal/repo"
	"github.com/tbourn/inbound-bridge/internal/services"
	"github.com/tbourn/inbound-bridge/internal/sysutil"
	"github.com/tbourn/inbound-bridge/internal/vault"
)

// shutdownGrace bounds the HTTP drain and the tracer flush.
const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pollers and the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	v, err := vault.New(cfg.Vault.Key, vault.Options{AllowLegacyPlaintext: cfg.Vault.AllowLegacyPlaintext})
	if err != nil {
		if errors.Is(err, vault.ErrNoKey) {
			return fmt.Errorf("%w: set VAULT_KEY", err)
		}
		return err
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	clk := clock.Real()
	l, closeLedger, err := openLedger(ctx, cfg.Ledger, db, clk)
	if err != nil {
		return err
	}
	defer closeLedger()

	// Outbound clients
	dispatcher := dispatch.New(dispatch.Options{UserAgent: "inbound-bridge/" + version})
	tracker := dispatch.NewTracker(dispatcher, cfg.AnalyticsURL)
	tg := telegram.New(telegram.Options{BaseURL: cfg.Chat.APIURL})
	mail := gmail.New(gmail.Options{BaseURL: cfg.Mail.APIURL})
	refresher := oauth.New(oauth.Options{
		TokenURL:     cfg.OAuth.TokenURL,
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
	})

	// Services
	gate := services.NewGateService(db, tracker, clk)
	tokens := services.NewTokenService(db, v, refresher, clk)
	tokens.SafetyMargin = cfg.OAuth.SafetyMargin

	// Pollers
	chat := pollers.NewChatPoller(db, tg, dispatcher, gate, l, tokens, clk, pollers.ChatConfig{
		PrimaryWebhookURL:   cfg.Chat.PrimaryWebhookURL,
		SecondaryWebhookURL: cfg.Chat.SecondaryWebhookURL,
		LongPollTimeout:     cfg.Chat.LongPollTimeout,
		DispatchTimeout:     cfg.Chat.DispatchTimeout,
		OutboundRPS:         cfg.OutboundRPS,
		OutboundBurst:       cfg.OutboundBurst,
	})
	mailPoller := pollers.NewMailPoller(mail, tokens, dispatcher, gate, pollers.MailConfig{
		WebhookURL:      cfg.Mail.WebhookURL,
		DispatchTimeout: cfg.Mail.DispatchTimeout,
		MaxResults:      cfg.Mail.MaxResults,
	})
	cleaner := pollers.NewCleaner(db, l, clk, cfg.AuditRetention)

	if cfg.Chat.PrimaryWebhookURL == "" && cfg.Chat.SecondaryWebhookURL == "" {
		log.Warn().Msg("no chat webhook configured; chat messages will fail to dispatch")
	}
	if cfg.Mail.WebhookURL == "" {
		log.Warn().Msg("MAIL_WEBHOOK_URL not set; mail messages will stay unread")
	}

	// Admin API
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Runners{Chat: chat, Mail: mailPoller}, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pollers.RunPeriodic(gctx, clk, "chat", cfg.Chat.PollInterval, chat.Tick)
	})
	g.Go(func() error {
		return pollers.RunPeriodic(gctx, clk, "mail", cfg.Mail.PollInterval, mailPoller.Tick)
	})
	g.Go(func() error {
		return pollers.RunPeriodic(gctx, clk, "cleanup", cfg.CleanupInterval, cleaner.Tick)
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("admin API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	log.Info().Msg("bridge stopped")
	return err
}

// openLedger builds the configured dedup ledger and its close func.
func openLedger(ctx context.Context, cfg config.LedgerConfig, db *gorm.DB, clk clock.Clock) (ledger.Ledger, func(), error) {
	switch cfg.Backend {
	case "redis":
		client, err := ledger.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("dedup ledger: redis")
		return ledger.NewRedisLedger(client, cfg.Retention, clk), func() { _ = client.Close() }, nil
	default:
		log.Info().Msg("dedup ledger: sql")
		return ledger.NewSQLLedger(db, cfg.Retention, clk), func() {}, nil
	}
}
