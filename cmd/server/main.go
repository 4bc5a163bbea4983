package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/quickquid/internal/alerts"
	"github.com/sudo-init-do/quickquid/internal/cache"
	"github.com/sudo-init-do/quickquid/internal/config"
	"github.com/sudo-init-do/quickquid/internal/db"
	"github.com/sudo-init-do/quickquid/internal/logging"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
	"github.com/sudo-init-do/quickquid/internal/middleware"
	"github.com/sudo-init-do/quickquid/internal/monitoring"
	"github.com/sudo-init-do/quickquid/internal/scheduler"
	"github.com/sudo-init-do/quickquid/internal/server"
	"github.com/sudo-init-do/quickquid/internal/storage/memory"
	"github.com/sudo-init-do/quickquid/internal/storage/postgres"
)

const devJWTSecret = "quickquid-dev-secret"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(&cfg.Logging, cfg.Server.Env)
	log.Info().
		Str("env", cfg.Server.Env).
		Str("store", cfg.Database.Driver).
		Str("notify", cfg.Notify.Driver).
		Msg("Starting QuickQUID marketplace")

	monitoring.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		store marketplace.Store
		ready func(context.Context) error
	)
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.MigrateOnStart {
			if err := db.Migrate(cfg.Database.URL, cfg.Database.MigrationsTable); err != nil {
				log.Fatal().Err(err).Msg("Failed to run migrations")
			}
		}
		database, err := db.New(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()
		store = postgres.New(database.Pool)
		ready = database.Health
	default:
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		store = memory.New()
	}

	// Catalog cache
	var queryCache marketplace.QueryCache
	if cfg.Redis.Addr != "" && cfg.Redis.CatalogCacheTTL > 0 {
		rdb := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable; catalog cache disabled")
		} else {
			queryCache = cache.NewCatalog(rdb, cfg.Redis.CatalogCacheTTL, logging.NewLogger("cache"))
			log.Info().Dur("ttl", cfg.Redis.CatalogCacheTTL).Msg("Catalog cache enabled")
		}
	}

	// Notifications
	notifier, closeNotifier, err := alerts.New(cfg, logging.NewLogger("alerts"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure notifier")
	}
	defer func() {
		if err := closeNotifier(); err != nil {
			log.Warn().Err(err).Msg("Failed to close notifier")
		}
	}()

	if cfg.Notify.Driver == "asynq" && cfg.Notify.WorkerEnabled {
		worker := alerts.NewProcessor(alerts.RedisOpt(cfg.Redis), cfg.Notify.AsynqQueue, logging.NewLogger("alerts"))
		if err := worker.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start alerts worker")
		}
		defer worker.Shutdown()
	}

	appLogger := logging.NewLogger("marketplace")
	mp := marketplace.New(store, marketplace.Options{
		Notifier:        notifier,
		Cache:           queryCache,
		RequestSLA:      cfg.Marketplace.RequestSLA,
		Categories:      cfg.Marketplace.Categories,
		DefaultPageSize: cfg.Marketplace.DefaultPageSize,
		MaxPageSize:     cfg.Marketplace.MaxPageSize,
		Logger:          &appLogger,
	})

	if cfg.Marketplace.ExpirySweepInterval > 0 {
		sweeper := scheduler.NewExpirySweeper(mp.Engagements, cfg.Marketplace.ExpirySweepInterval, logging.NewLogger("scheduler"))
		if err := sweeper.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start expiry sweeper")
		}
		defer sweeper.Stop()
	}

	secret := cfg.JWT.Secret
	if secret == "" {
		log.Warn().Msg("JWT_SECRET not set; using the development secret")
		secret = devJWTSecret
	}

	srv := server.New(cfg, server.Deps{
		Marketplace: mp,
		Auth:        middleware.NewJWTAuthenticator(secret, cfg.JWT.Issuer),
		Ready:       ready,
		Logger:      logging.NewLogger("server"),
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received, gracefully shutting down...")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
