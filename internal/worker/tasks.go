package worker

import (
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants. Delivery tasks are defined next to the dispatch queue.
const (
	TaskOverdueSweep = "appointments:overdue-sweep"
)

// NewOverdueSweepTask builds the periodic sweep. The handler scans every
// member, so the payload is empty.
func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(
		TaskOverdueSweep,
		nil,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(30*time.Minute), // Prevent duplicate if scheduler runs twice
	)
}
