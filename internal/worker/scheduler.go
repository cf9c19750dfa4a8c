package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/carecircle/hub/internal/config"
	"github.com/hibiken/asynq"
)

// StartScheduler creates and starts an Asynq Scheduler for periodic tasks.
// Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config, logger *slog.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	location, err := time.LoadLocation(cfg.SchedulerTimezone)
	if err != nil {
		logger.Warn("Invalid timezone, using UTC", "timezone", cfg.SchedulerTimezone, "error", err)
		location = time.UTC
	}

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: location,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	entryID, err := scheduler.Register(cfg.OverdueSweepSchedule, NewOverdueSweepTask())
	if err != nil {
		return nil, fmt.Errorf("failed to register overdue sweep schedule: %w", err)
	}

	// Start scheduler (non-blocking)
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info(
		"Scheduler started",
		"schedule", cfg.OverdueSweepSchedule,
		"timezone", location.String(),
		"entry_id", entryID,
	)

	return func() { scheduler.Shutdown() }, nil
}
