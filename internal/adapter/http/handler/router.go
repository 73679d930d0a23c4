package handler

import (
	"payment-orchestrator/internal/adapter/http/middleware"
	redisStore "payment-orchestrator/internal/adapter/storage/redis"
	"payment-orchestrator/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	CheckoutSvc    ports.CheckoutService
	VaultSvc       ports.VaultService
	WebhookSvc     ports.WebhookIngestService
	DiagnosticsSvc ports.DiagnosticsService
	Registry       ports.ProviderRegistry
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Provider callbacks (signature-authenticated, never JWT) ---
	webhookHandler := NewWebhookHandler(deps.WebhookSvc, deps.Registry, deps.Logger)
	r.POST("/webhooks/:provider", rl("webhooks"), webhookHandler.Receive)

	// API v1 routes (JWT-authenticated platform surface)
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1", jwtAuth)

	checkoutHandler := NewCheckoutHandler(deps.CheckoutSvc)
	checkouts := v1.Group("/checkouts")
	{
		checkouts.POST("", rl("checkout"), checkoutHandler.Create)
		checkouts.POST("/:reference/finalize", rl("checkout"), checkoutHandler.Finalize)
	}

	vaultHandler := NewVaultHandler(deps.VaultSvc)
	vault := v1.Group("/vault")
	{
		vault.POST("/cards", rl("vault"), vaultHandler.SaveCard)
		vault.GET("/cards/:customer_id", rl("vault"), vaultHandler.ListCards)
	}

	adminHandler := NewAdminHandler(deps.DiagnosticsSvc)
	admin := v1.Group("/admin")
	{
		admin.GET("/providers", rl("admin"), adminHandler.ProviderStatus)
		admin.GET("/stats", rl("admin"), adminHandler.Stats)
	}

	return r
}
