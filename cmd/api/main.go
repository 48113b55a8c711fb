package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/api"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/categories"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reports"
	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api exited with error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
	} else {
		logg.Warn(ctx, "redis not configured; rate limiting and idempotent replay disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	lifecycle := metrics.NewLifecycleMetrics(registry)

	conn := dbClient.DB()
	tokens := pkgAuth.NewTokenManager(cfg.JWT)
	accounts := users.NewRepository(conn)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		Accounts:       accounts,
		Tokens:         tokens,
		PasswordConfig: cfg.Password,
		ResetConfig:    cfg.PasswordReset,
		Logger:         logg,
	})
	if err != nil {
		return err
	}
	gate, err := auth.NewGate(tokens, accounts)
	if err != nil {
		return err
	}
	usersService, err := users.NewService(accounts, logg)
	if err != nil {
		return err
	}
	categoriesService, err := categories.NewService(categories.NewRepository(conn))
	if err != nil {
		return err
	}
	productsService, err := product.NewService(product.NewRepository(conn), logg)
	if err != nil {
		return err
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      dbClient,
		Outbox:  outboxService,
		Metrics: lifecycle,
		Logger:  logg,
	})
	if err != nil {
		return err
	}
	reportsService, err := reports.NewService(reports.ServiceParams{
		Repo:    reports.NewRepository(conn),
		Tx:      dbClient,
		Outbox:  outboxService,
		Metrics: lifecycle,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.Dependencies{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Gate:       gate,
		Auth:       authService,
		Users:      usersService,
		Categories: categoriesService,
		Products:   productsService,
		Orders:     ordersService,
		Reports:    reportsService,
		Metrics:    metrics.NewHTTPMetrics(registry),
		Gatherer:   registry,
	})
	server := api.NewServer(cfg, handler)

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": server.Addr,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
