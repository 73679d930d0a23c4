package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-orchestrator/config"
	httpHandler "payment-orchestrator/internal/adapter/http/handler"
	providerAdapter "payment-orchestrator/internal/adapter/provider"
	pgStorage "payment-orchestrator/internal/adapter/storage/postgres"
	redisStorage "payment-orchestrator/internal/adapter/storage/redis"
	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/service"
	"payment-orchestrator/internal/worker"
	"payment-orchestrator/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Payment Orchestrator")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	merchantRepo := pgStorage.NewMerchantRepo(pool)
	customerRepo := pgStorage.NewCustomerRepo(pool)
	pmRepo := pgStorage.NewPaymentMethodRepo(pool)
	subRepo := pgStorage.NewSubscriptionRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	routingRepo := pgStorage.NewRoutingRepo(pool)
	eventRepo := pgStorage.NewWebhookEventRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	dedupStore := redisStorage.NewDedupStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	emitter := redisStorage.NewEmitter(rdb, log)

	// Initialize provider adapters
	registry := providerAdapter.NewRegistry(cfg, &http.Client{Timeout: 15 * time.Second}, log)

	// Initialize core services
	tokenSvc := service.NewJWTTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	routingSvc := service.NewRoutingService(routingRepo, domain.Provider(cfg.Routing.DefaultProvider), log)
	identitySvc := service.NewIdentityService(customerRepo, emitter, log)
	vaultSvc := service.NewVaultService(pmRepo, log)
	checkoutSvc := service.NewCheckoutService(
		merchantRepo,
		customerRepo,
		pmRepo,
		txRepo,
		routingSvc,
		identitySvc,
		vaultSvc,
		registry,
		idempotencyCache,
		emitter,
		log,
	)
	webhookSvc := service.NewWebhookService(
		eventRepo,
		txRepo,
		subRepo,
		dedupStore,
		registry,
		transactor,
		emitter,
		cfg.Webhook,
		log,
	)
	renewalSvc := service.NewRenewalService(
		subRepo,
		txRepo,
		pmRepo,
		customerRepo,
		registry,
		transactor,
		emitter,
		cfg.Renewal,
		log,
	)
	diagnosticsSvc := service.NewDiagnosticsService(merchantRepo, txRepo, registry, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Background jobs: renewal sweeps + webhook retry loop
	runner := worker.NewRunner(log)
	for _, job := range worker.RenewalJobs(renewalSvc, cfg.Renewal, log) {
		runner.Add(job)
	}
	runner.Add(worker.WebhookRetryJob(webhookSvc, cfg.Webhook, log))
	runner.Start(ctx)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		CheckoutSvc:    checkoutSvc,
		VaultSvc:       vaultSvc,
		WebhookSvc:     webhookSvc,
		DiagnosticsSvc: diagnosticsSvc,
		Registry:       registry,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	runner.Wait()

	log.Info().Msg("Server exited")
}
