// Package httpapi assembles the admin HTTP surface of the bridge: the
// middleware chain, probes, and the /integrations, /activity and
// /automations routes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tbourn/inbound-bridge/internal/config"
	"github.com/tbourn/inbound-bridge/internal/http/handlers"
	"github.com/tbourn/inbound-bridge/internal/http/middleware"
	"github.com/tbourn/inbound-bridge/internal/services"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// Runners are the pollers the manual-trigger endpoint drives.
type Runners struct {
	Chat handlers.ChatRunner
	Mail handlers.MailRunner
}

// RegisterRoutes mounts the middleware chain, /health, /metrics and the admin
// API under cfg.APIBasePath. Order:
//
//	otelgin > RequestID > UserFromHeader > RedactingLogger > Recovery >
//	limitBody > Metrics > rate limiter > CORS > SecurityHeaders
//
// Identity precedes the logger and the limiter so both can key on the user.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, runners Runners, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())
	r.Use(middleware.UserFromHeader())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Telegram-Bot-Api-Secret-Token"},
		QuietPaths:  []string{"/health", "/metrics"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit; the admin API takes no large bodies.
	r.Use(limitBody(64 << 10))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(middleware.BypassRateLimit("/health", "/metrics"))
	r.Use(rl.Handler())

	// 8) CORS posture and security headers
	for _, h := range corsMiddleware(cfg.CORS.AllowedOrigins) {
		r.Use(h)
	}
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(db))

	h := handlers.New(
		&services.IntegrationService{DB: db},
		&services.ActivityService{DB: db},
		services.NewGateService(db, nil, nil),
		runners.Chat,
		runners.Mail,
	)

	// Admin API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/integrations", h.ListIntegrations)
		api.DELETE("/integrations/:platform", h.DisconnectIntegration)
		api.GET("/activity", h.ListActivity)
		api.POST("/automations/:capability/run", h.RunAutomation)
	}
}

// corsMiddleware allows every origin when origins is empty, setting ACAO: *
// even without an Origin header. Otherwise it echoes allow-listed origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderUserID},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
		AllowCredentials: false, // must remain false with AllowAllOrigins
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// health reports 200 while the database answers a ping and 503 otherwise.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err = sqlDB.PingContext(ctx)
			cancel()
		}
		if err != nil {
			middleware.LoggerFrom(c).Error().Err(err).Msg("health: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// limitBody caps request bodies at maxBytes; reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
