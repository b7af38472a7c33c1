package main

import (
	"context"
	"encoding/base64"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/blockpreventer/bridge/internal/config"
	"github.com/blockpreventer/bridge/internal/email"
	"github.com/blockpreventer/bridge/internal/repository/postgres"
	"github.com/blockpreventer/bridge/internal/sender"
	alertService "github.com/blockpreventer/bridge/internal/service/alert"
	"github.com/blockpreventer/bridge/internal/service/autoadjust"
	"github.com/blockpreventer/bridge/internal/service/blockdetect"
	"github.com/blockpreventer/bridge/internal/service/cooldown"
	"github.com/blockpreventer/bridge/internal/service/distribution"
	messageService "github.com/blockpreventer/bridge/internal/service/message"
	queueService "github.com/blockpreventer/bridge/internal/service/queue"
	"github.com/blockpreventer/bridge/internal/service/scoring"
	"github.com/blockpreventer/bridge/internal/worker"
	"github.com/blockpreventer/bridge/pkg/logger"
	"github.com/blockpreventer/bridge/pkg/messaging/redis"
	"github.com/blockpreventer/bridge/pkg/metrics"
	"github.com/blockpreventer/bridge/pkg/security"
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

	m := metrics.NewMetrics("bridge", "worker")
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	packageRepo := postgres.NewPackageRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	ledgerRepo := postgres.NewLedgerRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	queueRepo := postgres.NewQueueRepository(db)
	deliveryRepo := postgres.NewDeliveryRepository(db)
	routeRepo := postgres.NewRouteRepository(db)
	alertRepo := postgres.NewAlertRepository(db)

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
	adjuster := autoadjust.NewService(packageRepo, profileRepo, ledgerRepo, alerts, m, appLogger)

	queueProcessor := worker.NewQueueProcessor(queueSvc, cfg.Worker.QueueTick(), appLogger)
	healthMonitor := worker.NewHealthMonitor(packageRepo, profileRepo, detector, scorer, cfg.Worker.HealthCheckInterval(), m, appLogger)
	scheduler := worker.NewScheduler(packageRepo, profileRepo, ledgerRepo, messages, adjuster, appLogger)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("shutting down workers")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		queueProcessor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		healthMonitor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := scheduler.Start(ctx); err != nil {
			appLogger.Error(err, "scheduler failed")
		}
	}()
	wg.Wait()
}

func setupHealthCheck(appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.Fatal(err, "health check server failed")
		}
	}()
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
