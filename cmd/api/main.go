package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/blockpreventer/bridge/internal/config"
	"github.com/blockpreventer/bridge/internal/email"
	alertHandler "github.com/blockpreventer/bridge/internal/handler/alert"
	"github.com/blockpreventer/bridge/internal/handler/health"
	messageHandler "github.com/blockpreventer/bridge/internal/handler/message"
	packagesHandler "github.com/blockpreventer/bridge/internal/handler/packages"
	profileHandler "github.com/blockpreventer/bridge/internal/handler/profile"
	prometheusHandler "github.com/blockpreventer/bridge/internal/handler/prometheus"
	"github.com/blockpreventer/bridge/internal/middleware"
	"github.com/blockpreventer/bridge/internal/repository/postgres"
	"github.com/blockpreventer/bridge/internal/router"
	"github.com/blockpreventer/bridge/internal/sender"
	alertService "github.com/blockpreventer/bridge/internal/service/alert"
	"github.com/blockpreventer/bridge/internal/service/blockdetect"
	"github.com/blockpreventer/bridge/internal/service/cooldown"
	"github.com/blockpreventer/bridge/internal/service/distribution"
	messageService "github.com/blockpreventer/bridge/internal/service/message"
	queueService "github.com/blockpreventer/bridge/internal/service/queue"
	"github.com/blockpreventer/bridge/internal/service/registry"
	"github.com/blockpreventer/bridge/internal/service/scoring"
	"github.com/blockpreventer/bridge/pkg/logger"
	"github.com/blockpreventer/bridge/pkg/messaging/redis"
	"github.com/blockpreventer/bridge/pkg/metrics"
	"github.com/blockpreventer/bridge/pkg/security"
	"github.com/blockpreventer/bridge/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := newLogger(cfg.Logging)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	encryptor, err := security.NewEncryptor(decodeKey(cfg.Security.EncryptionKey))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid encryption key")
	}

	v, err := validator.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build validator")
	}

	m := metrics.NewMetrics("bridge", "engine")
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Repositories
	packageRepo := postgres.NewPackageRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	ledgerRepo := postgres.NewLedgerRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	queueRepo := postgres.NewQueueRepository(db)
	deliveryRepo := postgres.NewDeliveryRepository(db)
	routeRepo := postgres.NewRouteRepository(db)
	alertRepo := postgres.NewAlertRepository(db)

	// Services
	mailer := email.NewSMTPService(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	}, appLogger)
	alerts := alertService.NewService(alertRepo, broker, mailer, alertService.Config{
		NotifyEmail: cfg.Alerts.NotifyEmail,
	}, m, appLogger)

	snd := sender.NewHTTPSender(sender.Config{
		BaseURL:        cfg.Provider.BaseURL,
		Timeout:        time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
		RequestsPerSec: cfg.Provider.RequestsPerSec,
		Burst:          cfg.Provider.Burst,
	}, encryptor, appLogger)

	cooldowns := cooldown.NewService(cooldown.NewCalculator(rng), queueRepo, deliveryRepo, appLogger)
	scorer := scoring.NewService(profileRepo, ledgerRepo, deliveryRepo, appLogger)
	dist := distribution.NewService(profileRepo, ledgerRepo, queueRepo, routeRepo, rng, appLogger)
	detector := blockdetect.NewService(profileRepo, ledgerRepo, deliveryRepo, queueRepo, alerts, m, appLogger)
	queueSvc := queueService.NewService(queueRepo, profileRepo, packageRepo, ledgerRepo, messageRepo, deliveryRepo, cooldowns, dist, detector, snd, m, appLogger)
	messages := messageService.NewService(packageRepo, profileRepo, ledgerRepo, messageRepo, queueRepo, deliveryRepo, dist, cooldowns, scorer, snd, m, appLogger)
	reg := registry.NewService(packageRepo, profileRepo, ledgerRepo, queueRepo, encryptor, v, appLogger)

	// Router
	r := router.NewRouter(router.Config{
		RateLimit:      rate.Limit(cfg.Server.RateLimitRPS),
		RateBurst:      cfg.Server.RateLimitBurst,
		RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		CORSConfig:     middleware.DefaultCORSConfig(),
	},
		health.NewHandler(db, broker),
		prometheusHandler.New(),
		packagesHandler.NewHandler(reg),
		profileHandler.NewHandler(reg, messages),
		messageHandler.NewHandler(messages, queueSvc),
		alertHandler.NewHandler(alerts),
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		appLogger.Info("api server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	appLogger.Info("server exited")
}

func newLogger(cfg config.LoggingConfig) *logger.Logger {
	level := logger.InfoLevel
	switch cfg.Level {
	case "debug":
		level = logger.DebugLevel
	case "warn":
		level = logger.WarnLevel
	case "error":
		level = logger.ErrorLevel
	}
	return logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Pretty,
	})
}

// decodeKey accepts the key either base64-encoded or as 32 raw bytes.
func decodeKey(key string) []byte {
	if raw, err := base64.StdEncoding.DecodeString(key); err == nil && len(raw) == 32 {
		return raw
	}
	return []byte(key)
}
