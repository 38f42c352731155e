// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the admin server
// settings, logging, storage, the credential vault, the pollers and their
// downstream webhooks, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "inbound-bridge")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// VaultConfig configures credential sealing.
type VaultConfig struct {
	Key                  string // VAULT_KEY, required by serve and seal
	AllowLegacyPlaintext bool   // VAULT_ALLOW_LEGACY_PLAINTEXT
}

// LedgerConfig selects the dedup ledger backend.
type LedgerConfig struct {
	Backend   string        // sql|redis
	RedisURL  string        // redis://...
	Retention time.Duration // DEDUP_RETENTION
}

// ChatConfig configures the chat transport poller.
type ChatConfig struct {
	PollInterval        time.Duration
	LongPollTimeout     time.Duration
	DispatchTimeout     time.Duration
	PrimaryWebhookURL   string
	SecondaryWebhookURL string
	APIURL              string // TELEGRAM_API_URL
}

// MailConfig configures the mailbox poller.
type MailConfig struct {
	PollInterval    time.Duration
	DispatchTimeout time.Duration
	WebhookURL      string
	MaxResults      int
	APIURL          string // GMAIL_API_URL
}

// OAuthConfig configures the refresh-token grant.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	SafetyMargin time.Duration // TOKEN_SAFETY_MARGIN
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// Storage
	DBPath         string        // SQLite path
	AuditRetention time.Duration // how long activity entries are kept

	// Rate limiting of the admin API
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Outbound pacing per credential; 0 disables it.
	OutboundRPS   float64
	OutboundBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	Vault  VaultConfig
	Ledger LedgerConfig
	Chat   ChatConfig
	Mail   MailConfig
	OAuth  OAuthConfig

	AnalyticsURL    string        // optional usage tracking endpoint
	CleanupInterval time.Duration // retention purge period

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBPath:         getenv("DB_PATH", "bridge.db"),
		AuditRetention: getdur("AUDIT_RETENTION", 30*24*time.Hour),

		// Rate limiting
		RateRPS:       getfloat("RATE_RPS", 5.0),
		RateBurst:     getint("RATE_BURST", 10),
		OutboundRPS:   getfloat("OUTBOUND_RPS", 0),
		OutboundBurst: getint("OUTBOUND_BURST", 5),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		Vault: VaultConfig{
			Key:                  strings.TrimSpace(getenv("VAULT_KEY", "")),
			AllowLegacyPlaintext: getbool("VAULT_ALLOW_LEGACY_PLAINTEXT", false),
		},
		Ledger: LedgerConfig{
			Backend:   strings.ToLower(strings.TrimSpace(getenv("LEDGER_BACKEND", "sql"))),
			RedisURL:  getenv("REDIS_URL", ""),
			Retention: getdur("DEDUP_RETENTION", 24*time.Hour),
		},
		Chat: ChatConfig{
			PollInterval:        getdur("CHAT_POLL_INTERVAL", time.Second),
			LongPollTimeout:     getdur("CHAT_LONG_POLL_TIMEOUT", 2*time.Second),
			DispatchTimeout:     getdur("CHAT_DISPATCH_TIMEOUT", 15*time.Second),
			PrimaryWebhookURL:   getenv("CHAT_PRIMARY_WEBHOOK_URL", ""),
			SecondaryWebhookURL: getenv("CHAT_SECONDARY_WEBHOOK_URL", ""),
			APIURL:              getenv("TELEGRAM_API_URL", "https://api.telegram.org"),
		},
		Mail: MailConfig{
			PollInterval:    getdur("MAIL_POLL_INTERVAL", 60*time.Second),
			DispatchTimeout: getdur("MAIL_DISPATCH_TIMEOUT", 5*time.Second),
			WebhookURL:      getenv("MAIL_WEBHOOK_URL", ""),
			MaxResults:      getint("MAIL_MAX_RESULTS", 5),
			APIURL:          getenv("GMAIL_API_URL", "https://gmail.googleapis.com/gmail/v1/users/me"),
		},
		OAuth: OAuthConfig{
			TokenURL:     getenv("OAUTH_TOKEN_URL", "https://oauth2.googleapis.com/token"),
			ClientID:     getenv("OAUTH_CLIENT_ID", ""),
			ClientSecret: getenv("OAUTH_CLIENT_SECRET", ""),
			SafetyMargin: getdur("TOKEN_SAFETY_MARGIN", 2*time.Minute),
		},

		AnalyticsURL:    strings.TrimRight(getenv("ANALYTICS_URL", ""), "/"),
		CleanupInterval: getdur("CLEANUP_INTERVAL", time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "inbound-bridge"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.AuditRetention <= 0 {
		return cfg, errors.New("AUDIT_RETENTION must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OutboundRPS < 0 {
		return cfg, errors.New("OUTBOUND_RPS must be >= 0")
	}
	if cfg.OutboundBurst < 1 {
		return cfg, errors.New("OUTBOUND_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	switch cfg.Ledger.Backend {
	case "sql":
	case "redis":
		if strings.TrimSpace(cfg.Ledger.RedisURL) == "" {
			return cfg, errors.New("REDIS_URL is required when LEDGER_BACKEND=redis")
		}
	default:
		return cfg, errors.New("LEDGER_BACKEND must be one of: sql, redis")
	}
	if cfg.Ledger.Retention <= 0 {
		return cfg, errors.New("DEDUP_RETENTION must be > 0")
	}
	if cfg.Chat.PollInterval <= 0 || cfg.Mail.PollInterval <= 0 || cfg.CleanupInterval <= 0 {
		return cfg, errors.New("poll and cleanup intervals must be positive durations")
	}
	if cfg.Chat.LongPollTimeout < 0 {
		return cfg, errors.New("CHAT_LONG_POLL_TIMEOUT must be >= 0")
	}
	if cfg.Chat.DispatchTimeout <= 0 || cfg.Mail.DispatchTimeout <= 0 {
		return cfg, errors.New("dispatch timeouts must be positive durations")
	}
	if cfg.Mail.MaxResults < 1 || cfg.Mail.MaxResults > 500 {
		return cfg, errors.New("MAIL_MAX_RESULTS must be between 1 and 500")
	}
	if cfg.OAuth.SafetyMargin < 0 {
		return cfg, errors.New("TOKEN_SAFETY_MARGIN must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
