// Command scheduler runs the Cron Scheduler (component F, spec.md §4.3) as
// its own process: a poll loop over the shared Postgres store that
// materializes due recurring job definitions and publishes them to the
// shared AMQP broker.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ragbendra/distributed-job-queue/internal/broker"
	"github.com/ragbendra/distributed-job-queue/internal/config"
	"github.com/ragbendra/distributed-job-queue/internal/logging"
	"github.com/ragbendra/distributed-job-queue/internal/retry"
	"github.com/ragbendra/distributed-job-queue/internal/scheduler"
	"github.com/ragbendra/distributed-job-queue/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("scheduler: load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("scheduler: connect to database", zap.Error(err))
	}
	s := store.New(db)
	if err := s.Migrate(); err != nil {
		logger.Fatal("scheduler: migrate", zap.Error(err))
	}

	b, err := broker.Dial(cfg.BrokerURL)
	if err != nil {
		logger.Fatal("scheduler: dial broker", zap.Error(err))
	}
	defer b.Close()

	controller := retry.NewController(retry.TypeConfig{
		BaseDelay:  time.Duration(cfg.DefaultRetryBaseDelay) * time.Second,
		MaxDelay:   time.Duration(cfg.DefaultRetryMaxDelay) * time.Second,
		MaxRetries: cfg.DefaultMaxRetries,
	})

	sched := scheduler.New(s, controller, b, cfg.SchedulerPollInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("scheduler: running", zap.Duration("poll_interval", cfg.SchedulerPollInterval))
	sched.Run(ctx)
	logger.Info("scheduler: shutting down")
}
