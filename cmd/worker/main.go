package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medreturn-api/internal/config"
	"github.com/jwalitptl/medreturn-api/internal/handler/health"
	"github.com/jwalitptl/medreturn-api/internal/handler/prometheus"
	"github.com/jwalitptl/medreturn-api/internal/middleware"
	"github.com/jwalitptl/medreturn-api/internal/repository/postgres"
	internalWorker "github.com/jwalitptl/medreturn-api/internal/worker"
	"github.com/jwalitptl/medreturn-api/pkg/logger"
	"github.com/jwalitptl/medreturn-api/pkg/messaging/redis"
	"github.com/jwalitptl/medreturn-api/pkg/metrics"
	"github.com/jwalitptl/medreturn-api/pkg/worker"
)

const metricsNamespace = "medreturn_worker"

// healthServer exposes liveness, readiness and metrics on the health port.
func healthServer(port int, checks map[string]health.Check, prom *prometheus.Handler) *http.Server {
	engine := gin.New()
	engine.Use(middleware.Recovery())

	root := engine.Group("")
	health.NewHandler(checks).RegisterRoutes(root)
	root.GET("/metrics", prom.Handler())

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize logger
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = log.With().Str("component", "worker").Logger()
	appLogger := logger.New(log.Logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Redis broker")
	}
	defer broker.Close()

	promHandler := prometheus.New(metricsNamespace, nil)
	appMetrics := metrics.NewMetrics(metricsNamespace, promHandler.Registry())

	// Initialize repositories
	baseRepo := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)
	notificationRepo := postgres.NewNotificationRepository(baseRepo)

	processor, err := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			Channel:       cfg.Redis.Channel,
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
			RetainFor:     cfg.Outbox.RetainFor,
		},
		appLogger,
		appMetrics,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid outbox configuration")
	}
	retention := internalWorker.NewRetentionWorker(
		notificationRepo,
		cfg.Retention.ArchivedDays,
		cfg.Retention.Interval,
		appLogger,
	)

	// Setup health check endpoints
	srv := healthServer(cfg.Server.HealthPort, map[string]health.Check{
		"database": db.PingContext,
	}, promHandler)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health check server failed")
			stop()
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		retention.Start(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health check server forced to shutdown")
	}
}
