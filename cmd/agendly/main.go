package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/agendly/agendly/pkg/api"
	"github.com/agendly/agendly/pkg/billing"
	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/config"
	"github.com/agendly/agendly/pkg/observability"
	"github.com/agendly/agendly/pkg/plans"
	"github.com/agendly/agendly/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database.
	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		logger.WithError(err).Error("Failed to ensure database schema")
		os.Exit(1)
	}

	// Redis backs the per-company upgrade locks. Optional: without it the
	// orchestrator relies on the pending-intent unique constraint alone.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = postgres.NewRedisClient(postgres.RedisConfig{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to connect to redis")
			os.Exit(1)
		}
		defer redisClient.Close()
	} else {
		logger.Warn("Redis not configured, upgrade locking relies on the database constraint")
	}

	// Plan catalog, optionally from a watched YAML file.
	catalog := plans.NewCatalog()
	if cfg.Plans.CatalogFile != "" {
		if err := catalog.LoadFromFile(cfg.Plans.CatalogFile); err != nil {
			logger.WithError(err).Error("Failed to load plan catalog file")
			os.Exit(1)
		}
		if err := catalog.Watch(ctx, cfg.Plans.CatalogFile, logger); err != nil {
			logger.WithError(err).Warn("Plan catalog hot reload unavailable")
		}
	}

	companyService := companies.NewPostgresService(db)
	planService := plans.NewPostgresService(db, catalog)
	if err := planService.Seed(ctx); err != nil {
		logger.WithError(err).Error("Failed to seed plans")
		os.Exit(1)
	}

	intents := billing.NewIntentStore(db)

	// A missing Stripe key is demo mode, not an error.
	var processor billing.ProcessorClient
	if cfg.Billing.DemoMode() {
		logger.Warn("Stripe secret key not set, billing runs in demo mode")
	} else {
		client := billing.NewStripeClient(cfg.Billing.StripeSecretKey, 0)
		if cfg.Billing.StripeBaseURL != "" {
			client.SetBaseURL(cfg.Billing.StripeBaseURL)
		}
		processor = client
	}

	gate := billing.NewAccessGate(companyService, metrics)
	orchestrator := billing.NewOrchestrator(companyService, planService, intents, processor, redisClient, logger, metrics)
	if cfg.Billing.CheckoutRedirectURL != "" {
		orchestrator.SetRedirectURL(cfg.Billing.CheckoutRedirectURL)
	}
	harness := billing.NewHarness(companyService, logger, metrics)
	webhooks := billing.NewWebhookProcessor(companyService, intents, cfg.Billing.StripeWebhookSecret, logger, metrics)
	syncer := billing.NewSyncer(companyService, processor, intents, logger, metrics)

	server := api.NewServer(companyService, planService, gate, orchestrator, harness, webhooks, syncer, logger, metrics)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes and scrapes.
	healthChecker := observability.NewHealthChecker(db, redisClient)
	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/healthz", healthChecker.LivenessHandler).Methods("GET")
	healthRouter.HandleFunc("/readyz", healthChecker.ReadinessHandler).Methods("GET")
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", metrics.Handler()).Methods("GET")
	}
	healthServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthRouter,
	}

	go func() {
		logger.Infof("Health server listening on port %s", cfg.Server.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.Infof("Agendly billing engine listening on port %s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			cancel()
		}
	}()

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return healthServer.Shutdown(shutdownCtx)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		return nil
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
