package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carecircle/hub/internal/alerts"
	"github.com/carecircle/hub/internal/appointments"
	"github.com/carecircle/hub/internal/auth"
	"github.com/carecircle/hub/internal/catalog"
	"github.com/carecircle/hub/internal/config"
	"github.com/carecircle/hub/internal/database"
	"github.com/carecircle/hub/internal/dispatch"
	"github.com/carecircle/hub/internal/events"
	"github.com/carecircle/hub/internal/health"
	"github.com/carecircle/hub/internal/members"
	"github.com/carecircle/hub/internal/models"
	"github.com/carecircle/hub/internal/server"
	"github.com/carecircle/hub/internal/streams"
	"github.com/carecircle/hub/internal/webhook"
	"github.com/carecircle/hub/internal/worker"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()
	logger := worker.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.NotesEncryptionKey != "" {
		if err := models.InitEncryption(cfg.NotesEncryptionKey); err != nil {
			return fmt.Errorf("failed to init notes encryption: %w", err)
		}
	} else {
		logger.Warn("NOTES_ENCRYPTION_KEY not set. Appointment notes are stored in plaintext")
	}

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		return err
	}
	if cfg.Env == "development" {
		if err := database.SeedDevData(db); err != nil {
			logger.Warn("Failed to seed dev data", "error", err)
		}
	}

	registry, err := catalog.LoadBuiltin(logger)
	if err != nil {
		return err
	}

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(redisOpt)
	defer rdb.Close()

	queue, err := dispatch.NewAsynqQueueFromURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer queue.Close()

	bus := events.NewBus(logger)
	apptSvc := appointments.NewService(appointments.NewStore(db), bus, logger, cfg.AppointmentLinkBase)
	memberSvc := members.NewService(members.NewStore(db), bus, logger)
	gateway := dispatch.NewGateway(dispatch.NewStore(db), queue, registry, logger)
	publisher := streams.NewPublisherWithClient(rdb)

	// Subscription order is delivery order.
	appointments.RegisterSubscribers(bus, apptSvc)
	members.RegisterSubscribers(bus, memberSvc)
	dispatch.NewReminders(gateway, apptSvc, logger).Register(bus)
	streams.RegisterForwarder(bus, publisher)

	notifier := webhook.NewClient(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret, cfg.NotifyStubMode)
	if cfg.NotifyStubMode {
		logger.Info("Notification webhook in stub mode")
	}
	handlers := worker.NewHandlers(gateway, registry, notifier, publisher, apptSvc, logger)

	if cfg.WorkerMode == "worker" {
		return runWorker(cfg, handlers, gateway, logger)
	}

	if cfg.WorkerMode == "all" {
		stop, err := startBackground(cfg, handlers, gateway, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	auth.InitProviders(cfg)
	router := server.NewRouter(cfg, server.Deps{
		Appointments: apptSvc,
		Members:      memberSvc,
		Alerts: alerts.NewAggregator(
			alerts.NewStore(db), gateway, registry, apptSvc, memberSvc, logger,
		),
		Dispatches: gateway,
		JWT:        auth.NewJWT(cfg.JWTSecret, 0),
		Ready:      readiness(db, rdb),
		Logger:     logger,
	})

	return serve(cfg, router, logger)
}

// runWorker blocks in the asynq server; asynq handles signals itself.
func runWorker(cfg *config.Config, h *worker.Handlers, gateway *dispatch.Gateway, logger *slog.Logger) error {
	stopScheduler, err := worker.StartScheduler(cfg, logger)
	if err != nil {
		return err
	}
	defer stopScheduler()

	stopReceipts, err := streams.StartReceiptConsumer(cfg.RedisURL, gateway, logger)
	if err != nil {
		return err
	}
	defer stopReceipts()

	return worker.Run(cfg, h)
}

func startBackground(cfg *config.Config, h *worker.Handlers, gateway *dispatch.Gateway, logger *slog.Logger) (func(), error) {
	stopWorker, err := worker.Start(cfg, h)
	if err != nil {
		return nil, err
	}
	stopScheduler, err := worker.StartScheduler(cfg, logger)
	if err != nil {
		stopWorker()
		return nil, err
	}
	stopReceipts, err := streams.StartReceiptConsumer(cfg.RedisURL, gateway, logger)
	if err != nil {
		stopScheduler()
		stopWorker()
		return nil, err
	}
	logger.Info("Embedded worker started")

	return func() {
		stopReceipts()
		stopScheduler()
		stopWorker()
	}, nil
}

func readiness(db *gorm.DB, rdb *redis.Client) []health.Pinger {
	return []health.Pinger{
		health.PingFunc{Label: "postgres", Fn: func(ctx context.Context) error { return database.Ping(ctx, db) }},
		health.PingFunc{Label: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}
}

func serve(cfg *config.Config, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "mode", cfg.WorkerMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
