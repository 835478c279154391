// Command expiry-check runs the expiration notifier once for every active
// tenant and exits. It is meant for external schedulers such as a
// Kubernetes CronJob.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/medistock/medistock-backend/internal/inventory/events"
	"github.com/medistock/medistock-backend/internal/inventory/mailer"
	"github.com/medistock/medistock-backend/internal/inventory/repository"
	"github.com/medistock/medistock-backend/internal/inventory/service"
	userrepo "github.com/medistock/medistock-backend/internal/user/repository"
	"github.com/medistock/medistock-backend/pkg/cache"
	"github.com/medistock/medistock-backend/pkg/config"
	"github.com/medistock/medistock-backend/pkg/database"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/messaging"
)

const serviceName = "expiry-check"

func main() {
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("expiration check finished with errors")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	settingsCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	defer settingsCache.Close()

	// Notifier events are optional here; a missing broker only loses them.
	var publisher *events.InventoryEventPublisher
	if rmq, err := messaging.New(&cfg.RabbitMQ, log); err != nil {
		log.Warn().Err(err).Msg("RabbitMQ unavailable, notifier events are not published")
	} else {
		defer rmq.Close()
		if publisher, err = events.NewInventoryEventPublisher(rmq, serviceName, log); err != nil {
			return fmt.Errorf("create inventory event publisher: %w", err)
		}
	}

	itemRepo := repository.NewItemRepository(db)
	settingsService := service.NewSettingsService(repository.NewSettingsRepository(db), settingsCache, cfg.Cache.TTL, publisher, log)
	notifier := service.NewNotifier(userrepo.NewUserRepository(db), itemRepo, settingsService, mailer.NewSMTPSender(cfg.SMTP), publisher, log)
	job := service.NewExpiryJob(notifier, db, log)

	results, err := job.RunAll(ctx)
	for _, r := range results {
		log.Info().
			Str("tenant_id", r.TenantID).
			Str("outcome", string(r.Outcome)).
			Int("batches", r.Batches).
			Int("recipients", r.Recipients).
			Msg("tenant checked")
	}
	return err
}
