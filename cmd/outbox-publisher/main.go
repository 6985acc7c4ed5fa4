package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/freshbulk/freshbulk-backend/api"
	"github.com/freshbulk/freshbulk-backend/pkg/config"
	"github.com/freshbulk/freshbulk-backend/pkg/db"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
	"github.com/freshbulk/freshbulk-backend/pkg/metrics"
	"github.com/freshbulk/freshbulk-backend/pkg/migrate"
	"github.com/freshbulk/freshbulk-backend/pkg/outbox"
	"github.com/freshbulk/freshbulk-backend/pkg/outbox/registry"
	"github.com/freshbulk/freshbulk-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("build event registry: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	topics := newTopicCache(pubsubClient)
	defer topics.stop()

	relay, err := NewRelay(RelayDeps{
		Outbox:     cfg.Outbox,
		Logger:     logg,
		Tx:         dbClient,
		Store:      outbox.NewRepository(dbClient.DB()),
		Resolver:   eventRegistry,
		Publishers: topics.lookup,
		Metrics:    metrics.NewOutboxMetrics(reg),
		Readiness: []readinessCheck{
			{name: "database", check: dbClient.Ping},
			{name: "pubsub", check: pubsubClient.Ping},
		},
	})
	if err != nil {
		return fmt.Errorf("create outbox relay: %w", err)
	}

	if port := strings.TrimSpace(cfg.Outbox.MetricsPort); port != "" {
		srv := api.NewServer(":"+port, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := api.Serve(ctx, srv, cfg.App, logg); err != nil {
				logg.Error(ctx, "outbox metrics listener stopped", err)
			}
		}()
	}

	logg.Info(ctx, "starting outbox publisher")
	return relay.Run(ctx)
}
