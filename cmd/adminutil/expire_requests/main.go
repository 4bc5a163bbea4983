package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sudo-init-do/quickquid/internal/alerts"
	"github.com/sudo-init-do/quickquid/internal/config"
	"github.com/sudo-init-do/quickquid/internal/db"
	"github.com/sudo-init-do/quickquid/internal/logging"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
	"github.com/sudo-init-do/quickquid/internal/storage/postgres"
)

// Runs one expiry pass against the configured Postgres database, for
// deployments that sweep from cron instead of the in-process sweeper.
func main() {
	sla := flag.Duration("sla", 0, "Override REQUEST_SLA for this run")
	flag.Parse()

	if err := run(*sla); err != nil {
		log.Fatal(err)
	}
}

func run(slaOverride time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if slaOverride > 0 {
		cfg.Marketplace.RequestSLA = slaOverride
	}
	logging.Setup(&cfg.Logging, cfg.Server.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	database, err := db.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	notifier, closeNotifier, err := alerts.New(cfg, logging.NewLogger("alerts"))
	if err != nil {
		return fmt.Errorf("failed to configure notifier: %w", err)
	}
	defer func() {
		if err := closeNotifier(); err != nil {
			log.Printf("failed to close notifier: %v", err)
		}
	}()

	n, err := expire(ctx, postgres.New(database.Pool), notifier, cfg.Marketplace.RequestSLA, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("expiry pass failed after %d requests: %w", n, err)
	}

	fmt.Printf("Expired %d hire request(s) older than %s.\n", n, cfg.Marketplace.RequestSLA)
	return nil
}

// expire runs ExpireStale with expiry events routed to notifier
func expire(ctx context.Context, store marketplace.Store, notifier marketplace.Notifier, sla time.Duration, now time.Time) (int, error) {
	mp := marketplace.New(store, marketplace.Options{
		Notifier:   notifier,
		RequestSLA: sla,
	})
	return mp.Engagements.ExpireStale(ctx, now)
}
