// Command api runs the REST surface (component REST, spec.md §6) as its own
// process, talking to the shared Postgres store, AMQP broker and Redis
// cache that the worker and scheduler processes also connect to.
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ragbendra/distributed-job-queue/internal/api"
	"github.com/ragbendra/distributed-job-queue/internal/broker"
	"github.com/ragbendra/distributed-job-queue/internal/cache"
	"github.com/ragbendra/distributed-job-queue/internal/config"
	"github.com/ragbendra/distributed-job-queue/internal/health"
	"github.com/ragbendra/distributed-job-queue/internal/logging"
	"github.com/ragbendra/distributed-job-queue/internal/metrics"
	"github.com/ragbendra/distributed-job-queue/internal/ratelimit"
	"github.com/ragbendra/distributed-job-queue/internal/retry"
	"github.com/ragbendra/distributed-job-queue/internal/store"
	"github.com/ragbendra/distributed-job-queue/internal/store/migrations"
	"github.com/ragbendra/distributed-job-queue/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("api: load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("api: connect to database", zap.Error(err))
	}
	s := store.New(db)
	if err := s.Migrate(); err != nil {
		logger.Fatal("api: migrate", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("api: unwrap sql.DB", zap.Error(err))
	}
	if err := migrations.Run(sqlDB); err != nil {
		logger.Fatal("api: run index migrations", zap.Error(err))
	}

	b, err := broker.Dial(cfg.BrokerURL)
	if err != nil {
		logger.Fatal("api: dial broker", zap.Error(err))
	}
	defer b.Close()

	c, err := cache.New(cfg.CacheURL)
	if err != nil {
		logger.Fatal("api: connect to cache", zap.Error(err))
	}
	defer c.Close()
	s = s.WithStatusMirror(c)

	redisOpts, err := redis.ParseURL(cfg.CacheURL)
	if err != nil {
		logger.Fatal("api: parse cache url", zap.Error(err))
	}
	limiter := ratelimit.New(redis.NewClient(redisOpts), cfg.RateLimitEnabled, cfg.RateLimitMaxRequests, cfg.RateLimitWindowSeconds)

	controller := retry.NewController(retry.TypeConfig{
		BaseDelay:  time.Duration(cfg.DefaultRetryBaseDelay) * time.Second,
		MaxDelay:   time.Duration(cfg.DefaultRetryMaxDelay) * time.Second,
		MaxRetries: cfg.DefaultMaxRetries,
	})

	m := metrics.New()

	ctx := context.Background()
	tracer, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  "jobqueue-api",
		Endpoint:     cfg.TracingOTLPEndpoint,
		Enabled:      cfg.TracingEnabled,
		SamplingRate: cfg.TracingSamplingRate,
	})
	if err != nil {
		logger.Fatal("api: init tracing", zap.Error(err))
	}
	defer tracer.Shutdown(ctx)

	checker := health.New(map[string]health.Pinger{"store": s, "cache": c})

	a := api.New(s, controller, b, limiter, c, m, tracer, checker, logger)

	srv := &http.Server{Addr: ":8080", Handler: a.Router()}
	logger.Info("api: listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("api: serve", zap.Error(err))
	}
}
