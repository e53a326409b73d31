// Package api exposes the ticket workflow over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gigconnect/gigconnect/internal/apierrors"
	"github.com/gigconnect/gigconnect/internal/config"
	"github.com/gigconnect/gigconnect/internal/middleware"
)

const defaultMaxUpload = 10 << 20

// HealthCheck pings one dependency for /healthz.
type HealthCheck func(ctx context.Context) error

// Options wires the router.
type Options struct {
	Tickets   TicketService
	Validator middleware.TokenValidator
	Limiter   middleware.Limiter
	Limits    config.RateLimitConfig
	MaxUpload int64

	// Realtime serves GET /api/ws when set.
	Realtime gin.HandlerFunc
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
	Checks   map[string]HealthCheck

	// UploadsDir is served under UploadsURL for the local storage driver.
	UploadsDir string
	UploadsURL string
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if config.DebugEnabled() {
		r.Use(gin.Logger())
	}

	maxUpload := opts.MaxUpload
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	h := &ticketHandlers{svc: opts.Tickets, maxUpload: maxUpload}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", healthHandler(opts.Checks))

	if opts.UploadsDir != "" && opts.UploadsURL != "" {
		r.Static(opts.UploadsURL, opts.UploadsDir)
	}

	api := r.Group("/api")
	api.GET("/debug/tickets/:id", h.debug)
	if opts.Realtime != nil {
		api.GET("/ws", opts.Realtime)
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = middleware.NewMemoryLimiter()
	}
	messagesLimit := middleware.RateLimitByUser(limiter, "messages", MessageRule(opts.Limits))
	attachmentsLimit := middleware.RateLimitByUser(limiter, "attachments", AttachmentRule(opts.Limits))

	tickets := api.Group("/tickets", middleware.BearerAuth(opts.Validator))
	{
		tickets.GET("", h.list)
		tickets.GET("/:id", h.get)
		tickets.GET("/:id/timeline", h.timeline)
		tickets.POST("/:id/messages", messagesLimit, h.sendMessage)
		tickets.POST("/:id/messages/attachment", attachmentsLimit, h.sendAttachment)
		tickets.PATCH("/:id/messages/read", h.markRead)
		tickets.GET("/:id/messages/search", h.search)
		tickets.PATCH("/:id/price", h.proposePrice)
		tickets.PATCH("/:id/accept-price", h.acceptPrice)
		tickets.PATCH("/:id/pay", h.pay)
		tickets.PATCH("/:id/complete", h.complete)
		tickets.PATCH("/:id/close", h.close)
		tickets.POST("/:id/ai-response", h.aiResponse)
	}

	r.NoRoute(func(c *gin.Context) {
		apierrors.ErrorWithMessage(c, apierrors.CodeNotFound, "Route not found")
	})
	return r
}

// MessageRule is the per-user budget for text messages. The websocket
// sendMessage event shares it with the REST route.
func MessageRule(limits config.RateLimitConfig) middleware.RateRule {
	return rule(limits.Messages, middleware.RateRule{Limit: 5, Window: time.Minute})
}

// AttachmentRule is the per-user budget for attachment uploads.
func AttachmentRule(limits config.RateLimitConfig) middleware.RateRule {
	return rule(limits.Attachments, middleware.RateRule{Limit: 5, Window: 15 * time.Minute})
}

func rule(l config.LimitRule, fallback middleware.RateRule) middleware.RateRule {
	if l.Limit <= 0 || l.Window <= 0 {
		return fallback
	}
	return middleware.RateRule{Limit: l.Limit, Window: l.Window}
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				logger.Printf("Health check %s failed: %v", name, err)
				results[name] = "unavailable"
				healthy = false
				continue
			}
			results[name] = "ok"
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": results})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results})
	}
}
