package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/agendly/agendly/pkg/billing"
	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/config"
	"github.com/agendly/agendly/pkg/observability"
	"github.com/agendly/agendly/pkg/storage/postgres"
)

var (
	schedule = flag.String("schedule", "", "Cron schedule for sync passes (overrides AGENDLY_SYNC_SCHEDULE)")
	runOnce  = flag.Bool("run-once", false, "Run a single sync pass and exit")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to postgres")
	}
	defer db.Close()

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(nil)

	companyService := companies.NewPostgresService(db)
	intents := billing.NewIntentStore(db)

	var processor billing.ProcessorClient
	if cfg.Billing.DemoMode() {
		log.Warn("Stripe secret key not set, sync only expires stale intents")
	} else {
		client := billing.NewStripeClient(cfg.Billing.StripeSecretKey, 0)
		if cfg.Billing.StripeBaseURL != "" {
			client.SetBaseURL(cfg.Billing.StripeBaseURL)
		}
		processor = client
	}

	syncer := billing.NewSyncer(companyService, processor, intents, logger, metrics)

	if *runOnce {
		if err := syncer.SyncAll(context.Background()); err != nil {
			log.WithError(err).Fatal("Sync pass failed")
		}
		log.Info("Sync pass completed")
		return
	}

	cronSchedule := cfg.Billing.SyncSchedule
	if *schedule != "" {
		cronSchedule = *schedule
	}

	c := cron.New()
	_, err = c.AddFunc(cronSchedule, func() {
		if err := syncer.SyncAll(context.Background()); err != nil {
			log.WithError(err).Error("Sync pass failed")
			return
		}
		log.Info("Sync pass completed")
	})
	if err != nil {
		log.WithError(err).Fatalf("Invalid sync schedule %q", cronSchedule)
	}

	c.Start()
	log.WithField("schedule", cronSchedule).Info("External status sync worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down sync worker")
	<-c.Stop().Done()
}
