package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskDeliver = "dispatch:deliver"
	QueueName   = "dispatches"
)

// DeliverPayload is the body of a dispatch:deliver task.
type DeliverPayload struct {
	DispatchID string `json:"dispatch_id"`
}

// Queue schedules delayed delivery of dispatches, keyed by dispatch id.
type Queue interface {
	Schedule(ctx context.Context, dispatchID string, at time.Time) error
	Cancel(ctx context.Context, dispatchID string) error
}

// AsynqQueue schedules deliveries as asynq tasks whose task id is the
// dispatch id, so a pending delivery can be found again without a lookup.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewAsynqQueue(opt asynq.RedisConnOpt) *AsynqQueue {
	return &AsynqQueue{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}
}

// NewAsynqQueueFromURL parses a redis:// URL the way the worker does.
func NewAsynqQueueFromURL(redisURL string) (*AsynqQueue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return NewAsynqQueue(opt), nil
}

// NewDeliverTask builds the task for one dispatch. Completed tasks are not
// retained, so the id is free for the next send with the same dispatch id.
func NewDeliverTask(dispatchID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DeliverPayload{DispatchID: dispatchID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskDeliver,
		payload,
		asynq.Queue(QueueName),
		asynq.TaskID(dispatchID),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
	), nil
}

// Schedule replaces any pending task for dispatchID with one due at at.
func (q *AsynqQueue) Schedule(ctx context.Context, dispatchID string, at time.Time) error {
	if err := q.Cancel(ctx, dispatchID); err != nil {
		return err
	}

	task, err := NewDeliverTask(dispatchID)
	if err != nil {
		return fmt.Errorf("failed to build deliver task: %w", err)
	}

	_, err = q.client.EnqueueContext(ctx, task, asynq.ProcessAt(at))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// The previous task is running right now and could not be removed.
		return fmt.Errorf("dispatch %s is being delivered: %w", dispatchID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue dispatch %s: %w", dispatchID, err)
	}
	return nil
}

// Cancel drops the pending task for dispatchID. Unknown ids are a no-op.
func (q *AsynqQueue) Cancel(_ context.Context, dispatchID string) error {
	err := q.inspector.DeleteTask(QueueName, dispatchID)
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("failed to cancel dispatch %s: %w", dispatchID, err)
}

func (q *AsynqQueue) Close() error {
	if err := q.inspector.Close(); err != nil {
		return err
	}
	return q.client.Close()
}
