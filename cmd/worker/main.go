// Command worker runs the Worker Runtime (component E, spec.md §4.5): it
// consumes the three priority queues and executes jobs through the
// build-time handler registry.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ragbendra/distributed-job-queue/internal/broker"
	"github.com/ragbendra/distributed-job-queue/internal/cache"
	"github.com/ragbendra/distributed-job-queue/internal/config"
	"github.com/ragbendra/distributed-job-queue/internal/handlers"
	"github.com/ragbendra/distributed-job-queue/internal/logging"
	"github.com/ragbendra/distributed-job-queue/internal/model"
	"github.com/ragbendra/distributed-job-queue/internal/retry"
	"github.com/ragbendra/distributed-job-queue/internal/store"
	"github.com/ragbendra/distributed-job-queue/internal/tracing"
	"github.com/ragbendra/distributed-job-queue/internal/worker"
)

// logEmailSender logs outbound emails instead of contacting a real
// provider — the opaque handler code spec.md §1 treats as out of scope,
// kept as a stand-in the way the teacher's job bodies simulate external
// work with a sleep.
type logEmailSender struct{ logger *zap.Logger }

func (s logEmailSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.Info("worker: send_email", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("worker: load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("worker: connect to database", zap.Error(err))
	}
	s := store.New(db)
	if err := s.Migrate(); err != nil {
		logger.Fatal("worker: migrate", zap.Error(err))
	}

	b, err := broker.Dial(cfg.BrokerURL)
	if err != nil {
		logger.Fatal("worker: dial broker", zap.Error(err))
	}
	defer b.Close()

	c, err := cache.New(cfg.CacheURL)
	if err != nil {
		logger.Fatal("worker: connect to cache", zap.Error(err))
	}
	defer c.Close()
	s = s.WithStatusMirror(c)

	controller := retry.NewController(retry.TypeConfig{
		BaseDelay:  time.Duration(cfg.DefaultRetryBaseDelay) * time.Second,
		MaxDelay:   time.Duration(cfg.DefaultRetryMaxDelay) * time.Second,
		MaxRetries: cfg.DefaultMaxRetries,
	})

	registry := handlers.Registry{
		model.TypeSendEmail:     handlers.SendEmailHandler{Sender: logEmailSender{logger: logger}},
		model.TypeProcessVideo:  handlers.ProcessVideoHandler{},
		model.TypeScrapeWebsite: handlers.ScrapeWebsiteHandler{Client: http.DefaultClient},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  "jobqueue-worker",
		Endpoint:     cfg.TracingOTLPEndpoint,
		Enabled:      cfg.TracingEnabled,
		SamplingRate: cfg.TracingSamplingRate,
	})
	if err != nil {
		logger.Fatal("worker: init tracing", zap.Error(err))
	}
	defer tracer.Shutdown(context.Background())

	rt := worker.New(s, controller, registry, b, b, c, cfg.WorkerID, cfg.WorkerPrefetchCount, logger).WithTracer(tracer)

	if err := rt.Start(ctx); err != nil {
		logger.Fatal("worker: start", zap.Error(err))
	}

	logger.Info("worker: running", zap.String("worker_id", cfg.WorkerID))
	<-ctx.Done()
	logger.Info("worker: shutting down")
}
