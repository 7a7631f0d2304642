package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/medreturn-api/internal/config"
	"github.com/jwalitptl/medreturn-api/internal/email"
	"github.com/jwalitptl/medreturn-api/internal/handler/health"
	notificationHandler "github.com/jwalitptl/medreturn-api/internal/handler/notification"
	"github.com/jwalitptl/medreturn-api/internal/handler/prometheus"
	promptHandler "github.com/jwalitptl/medreturn-api/internal/handler/prompt"
	"github.com/jwalitptl/medreturn-api/internal/middleware"
	"github.com/jwalitptl/medreturn-api/internal/model"
	"github.com/jwalitptl/medreturn-api/internal/prompt"
	"github.com/jwalitptl/medreturn-api/internal/repository/postgres"
	"github.com/jwalitptl/medreturn-api/internal/router"
	notificationService "github.com/jwalitptl/medreturn-api/internal/service/notification"
	"github.com/jwalitptl/medreturn-api/pkg/auth"
	"github.com/jwalitptl/medreturn-api/pkg/logger"
	"github.com/jwalitptl/medreturn-api/pkg/messaging/redis"
	"github.com/jwalitptl/medreturn-api/pkg/metrics"
)

const metricsNamespace = "medreturn"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize logger
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
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

	// Initialize Redis message broker
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Metrics share the registry served by /metrics
	promHandler := prometheus.New(metricsNamespace, nil)
	appMetrics := metrics.NewMetrics(metricsNamespace, promHandler.Registry())

	// Initialize repositories
	baseRepo := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(baseRepo)

	// Initialize services
	var escalation *notificationService.Escalation
	if cfg.Email.Enabled {
		escalation = &notificationService.Escalation{
			Mailer:     email.NewSMTPService(cfg.Email),
			Recipients: cfg.Email.AdminRecipients,
		}
	}
	notificationSvc, err := notificationService.NewService(notificationRepo, escalation, appLogger, appMetrics)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize notification service")
	}

	promptRegistry := prompt.NewRegistry(cfg.Prompt, notificationSvc,
		prompt.WithLogger(appLogger),
		prompt.WithMetrics(appMetrics),
	)
	defer promptRegistry.Close()

	// Initialize middleware
	if err := middleware.RegisterBindingRules(model.TargetRule()); err != nil {
		log.Fatal().Err(err).Msg("failed to register validation rules")
	}
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	}

	// Initialize handlers
	healthHandler := health.NewHandler(map[string]health.Check{
		"database": db.PingContext,
	})
	notifHandler := notificationHandler.NewHandler(notificationSvc, authMiddleware, broker, cfg.Redis.Channel, appMetrics)
	prHandler := promptHandler.NewHandler(promptRegistry)

	// Setup router
	r := router.NewRouter(log.Logger, authMiddleware, healthHandler, promHandler, router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		RateClientTTL:    cfg.RateLimit.ClientTTL,
		CORSConfig:       corsConfig,
		RequestTimeout:   cfg.Server.RequestTimeout,
	})
	r.Register(notifHandler, prHandler)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		appLogger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
