package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

func main() {
	listDLQ := flag.Int("list-dlq", 0, "print the N most recent dead-lettered events and exit")
	dlqReason := flag.String("dlq-reason", "", "with -list-dlq, only show this reason (max_attempts or non_retryable)")
	dlqAggregate := flag.String("dlq-aggregate", "", "with -list-dlq, only show events for this order or report id")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	if *listDLQ > 0 {
		filter, err := dlqFilter(*listDLQ, *dlqReason, *dlqAggregate)
		if err != nil {
			logg.Error(context.Background(), "invalid dlq filter", err)
			os.Exit(2)
		}
		if err := printDLQ(context.Background(), dlqRepo, filter); err != nil {
			logg.Error(context.Background(), "failed to list dlq", err)
			os.Exit(1)
		}
		return
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: dlqRepo,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "outbox-publisher",
		"topics":      eventRegistry.Topics(),
	})

	if cfg.Metrics.Enabled {
		srv := metricsServer(cfg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics server stopped", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func metricsServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	return &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func dlqFilter(limit int, reason, aggregate string) (outbox.DLQFilter, error) {
	filter := outbox.DLQFilter{Limit: limit, Reason: enums.OutboxDLQErrorReason(reason)}
	if reason != "" && !filter.Reason.IsValid() {
		return filter, fmt.Errorf("unknown dlq reason %q", reason)
	}
	if aggregate != "" {
		id, err := uuid.Parse(aggregate)
		if err != nil {
			return filter, fmt.Errorf("parse aggregate id: %w", err)
		}
		filter.AggregateID = id
	}
	return filter, nil
}

func printDLQ(ctx context.Context, repo *outbox.DLQRepository, filter outbox.DLQFilter) error {
	summary, err := repo.Summary(ctx)
	if err != nil {
		return err
	}
	for _, line := range summary {
		fmt.Printf("# %s\t%s\t%d\n", line.EventType, line.ErrorReason, line.Count)
	}

	rows, err := repo.List(ctx, filter)
	if err != nil {
		return err
	}
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Printf("%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			row.FailedAt.Format(time.RFC3339), row.EventID, row.EventType, row.AggregateID, row.ErrorReason, row.AttemptCount, msg)
	}
	return nil
}
