package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/auth"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/calendar"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/config"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/db"
	httpapi "github.com/WailSalutem-Health-Care/reminder-service/internal/http"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/logging"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/messaging"
	redisclient "github.com/WailSalutem-Health-Care/reminder-service/internal/redis"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/reminders"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     cfg.ServiceName,
	})

	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("reminder-service starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	provider, err := telemetry.InitProvider(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry init error")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("telemetry shutdown error")
		}
	}()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("metrics init error")
	}

	// Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	database, err := db.Connect(pgCtx, db.Config{DSN: cfg.PostgresDSN(), Name: cfg.DBName}, logger)
	if err == nil {
		err = db.EnsureSchema(pgCtx, database)
	}
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer database.Close()

	// Redis is optional; without it batches are submitted unlocked.
	var locker redisclient.Locker = redisclient.NoopLocker{}
	if cfg.RedisURL != "" {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisBatchLocker(rdb, cfg.BatchLockTTL, logger)
		logger.Info().Msg("connected to Redis")
	}

	var publisher messaging.PublisherInterface = messaging.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		p, err := messaging.NewPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("RabbitMQ unavailable, events will not be published")
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	jwks, err := auth.NewJWKS(cfg.AuthJWKSURL, 0, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("jwks init error")
	}
	defer jwks.Close()
	verifier := auth.NewVerifier(auth.Config{
		Issuer:   cfg.AuthIssuer,
		JWKSURL:  cfg.AuthJWKSURL,
		Audience: cfg.AuthAudience,
	}, jwks)

	providerHTTP := &http.Client{Timeout: cfg.ProviderTimeout}
	calendarClient := calendar.NewPacedClient(
		calendar.NewGoogleClient(calendar.GoogleClientConfig{
			CalendarID: cfg.CalendarID,
			Endpoint:   cfg.CalendarEndpoint,
			HTTPClient: providerHTTP,
		}),
		cfg.ProviderRate,
		cfg.ProviderBurst,
	)

	repo := reminders.NewRepository(database)
	svc := reminders.NewService(reminders.Deps{
		Credentials:     repo,
		Receipts:        repo,
		Tokens:          calendar.NewTokenProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleTokenURL, providerHTTP),
		Calendar:        calendarClient,
		Locker:          locker,
		Publisher:       publisher,
		Metrics:         metrics,
		Logger:          logger,
		DefaultTimeZone: cfg.DefaultTimezone,
	})

	router := httpapi.SetupRouter(httpapi.RouterConfig{
		ServiceName: cfg.ServiceName,
		Reminders:   reminders.NewHandler(svc, logger),
		Verifier:    verifier,
		Metrics:     metrics,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.CORSMiddleware(cfg.AllowedOrigins)(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down reminder-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
