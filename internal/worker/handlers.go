package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carecircle/hub/internal/catalog"
	"github.com/carecircle/hub/internal/dispatch"
	"github.com/carecircle/hub/internal/models"
	"github.com/carecircle/hub/internal/streams"
	"github.com/carecircle/hub/internal/webhook"
	"github.com/hibiken/asynq"
)

// Dispatches is the slice of the gateway the worker needs.
type Dispatches interface {
	Find(ctx context.Context, dispatchID string) (*models.Dispatch, error)
	Exists(ctx context.Context, dispatchID string) (bool, error)
	Send(ctx context.Context, req dispatch.Request) (*models.Dispatch, error)
	MarkSent(ctx context.Context, dispatchID string, at time.Time) error
	MarkFailed(ctx context.Context, dispatchID, reason string) error
}

type Renderer interface {
	Render(contentKey string, data any) (catalog.Message, error)
}

type Notifier interface {
	Send(ctx context.Context, n webhook.Notification) (*webhook.Receipt, error)
}

type NotificationPublisher interface {
	PublishNotification(ctx context.Context, msg streams.NotificationMessage) (string, error)
}

// OverdueSource lists scheduled appointments whose summary is overdue.
type OverdueSource interface {
	ListUnsubmitted(ctx context.Context) ([]models.Appointment, error)
}

// Handlers implements the worker's task handlers.
type Handlers struct {
	dispatches Dispatches
	renderer   Renderer
	notifier   Notifier
	publisher  NotificationPublisher
	overdue    OverdueSource
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandlers wires the task handlers. publisher may be nil, in which case
// sent notifications are not announced on the stream.
func NewHandlers(d Dispatches, r Renderer, n Notifier, p NotificationPublisher, o OverdueSource, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		dispatches: d,
		renderer:   r,
		notifier:   n,
		publisher:  p,
		overdue:    o,
		logger:     logger,
		now:        time.Now,
	}
}

// Register mounts the handlers on mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(dispatch.TaskDeliver, h.HandleDeliver)
	mux.HandleFunc(TaskOverdueSweep, h.HandleOverdueSweep)
}

// HandleDeliver renders a due dispatch, hands it to the provider and stamps
// sentAt. Dispatches deleted in the meantime are skipped.
func (h *Handlers) HandleDeliver(ctx context.Context, task *asynq.Task) error {
	var payload dispatch.DeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.DispatchID == "" {
		// Invalid payload - don't retry
		return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
	}

	d, err := h.dispatches.Find(ctx, payload.DispatchID)
	if errors.Is(err, dispatch.ErrDispatchNotFound) {
		h.logger.Info("Dispatch deleted before delivery", "dispatch_id", payload.DispatchID)
		return nil
	}
	if err != nil {
		// Database error - retryable
		return fmt.Errorf("failed to fetch dispatch: %w", err)
	}
	if d.Status == models.DispatchStatusSent || d.Status == models.DispatchStatusDelivered {
		h.logger.Info("Dispatch already sent", "dispatch_id", d.DispatchID)
		return nil
	}

	h.logger.Info("Processing dispatch:deliver task",
		"dispatch_id", d.DispatchID,
		"content_key", d.ContentKey,
	)

	data := map[string]any{}
	if len(d.Payload) > 0 {
		if err := json.Unmarshal(d.Payload, &data); err != nil || data == nil {
			data = map[string]any{}
		}
	}
	data["recipientClientId"] = d.RecipientClientID
	data["senderClientId"] = d.SenderClientID

	msg, err := h.renderer.Render(d.ContentKey, data)
	if err != nil {
		h.fail(ctx, d.DispatchID, err)
		return fmt.Errorf("failed to render dispatch: %v: %w", err, asynq.SkipRetry)
	}

	receipt, err := h.notifier.Send(ctx, webhook.Notification{
		DispatchID:        d.DispatchID,
		RecipientClientID: d.RecipientClientID,
		SenderClientID:    d.SenderClientID,
		ContentKey:        d.ContentKey,
		Title:             msg.Title,
		Body:              msg.Body,
		Payload:           json.RawMessage(d.Payload),
	})
	if err != nil {
		if errors.Is(err, webhook.ErrRejected) {
			h.fail(ctx, d.DispatchID, err)
			return fmt.Errorf("provider rejected dispatch: %v: %w", err, asynq.SkipRetry)
		}
		if lastAttempt(ctx) {
			h.fail(ctx, d.DispatchID, err)
		}
		return fmt.Errorf("webhook delivery failed: %w", err)
	}

	sentAt := h.now().UTC()
	if err := h.dispatches.MarkSent(ctx, d.DispatchID, sentAt); err != nil {
		return fmt.Errorf("failed to mark dispatch sent: %w", err)
	}

	if h.publisher != nil {
		msgID, err := h.publisher.PublishNotification(ctx, streams.NotificationMessage{
			DispatchID:        d.DispatchID,
			RecipientClientID: d.RecipientClientID,
			SenderClientID:    d.SenderClientID,
			ContentKey:        d.ContentKey,
			Title:             msg.Title,
			Body:              msg.Body,
			ProviderMessageID: receipt.ProviderMessageID,
			SentAt:            sentAt,
		})
		if err != nil {
			// already sent; a retry would notify twice
			h.logger.Error("Failed to publish notification", "dispatch_id", d.DispatchID, "error", err)
		} else {
			h.logger.Debug("Notification published", "dispatch_id", d.DispatchID, "stream_msg_id", msgID)
		}
	}

	h.logger.Info("Dispatch delivered",
		"dispatch_id", d.DispatchID,
		"provider_message_id", receipt.ProviderMessageID,
	)
	return nil
}

func (h *Handlers) fail(ctx context.Context, dispatchID string, cause error) {
	if err := h.dispatches.MarkFailed(ctx, dispatchID, cause.Error()); err != nil {
		h.logger.Error("Failed to mark dispatch failed", "dispatch_id", dispatchID, "error", err)
	}
}

func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return ok && retried >= maxRetry
}

// HandleOverdueSweep reminds users of appointments whose summary is more
// than a day late. The deterministic dispatch id keeps it to one reminder per
// appointment however often the sweep runs.
func (h *Handlers) HandleOverdueSweep(ctx context.Context, _ *asynq.Task) error {
	overdue, err := h.overdue.ListUnsubmitted(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unsubmitted appointments: %w", err)
	}

	sent, skipped, failed := 0, 0, 0
	for _, a := range overdue {
		id := dispatch.DispatchID(dispatch.ContentAppointmentSubmitReminder, a.UserID, a.ID)
		exists, err := h.dispatches.Exists(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check dispatch %s: %w", id, err)
		}
		if exists {
			skipped++
			continue
		}

		payload := map[string]any{
			"appointmentId": a.ID,
			"memberId":      a.MemberID,
		}
		if a.End != nil {
			payload["end"] = a.End.UTC().Format(time.RFC3339)
		}
		_, err = h.dispatches.Send(ctx, dispatch.Request{
			ContentKey:        dispatch.ContentAppointmentSubmitReminder,
			RecipientClientID: a.UserID,
			CorrelationID:     a.ID,
			AppointmentID:     a.ID,
			Payload:           payload,
		})
		if err != nil {
			failed++
			h.logger.Error("Failed to send submit reminder", "appointment_id", a.ID, "error", err)
			continue
		}
		sent++
	}

	h.logger.Info("Overdue sweep completed",
		"overdue", len(overdue),
		"sent", sent,
		"skipped", skipped,
		"failed", failed,
	)
	return nil
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		// Check if this is the final failure (task will move to dead letter queue)
		if retried >= maxRetry || errors.Is(err, asynq.SkipRetry) {
			logger.Error(
				"Task archived",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
