package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/carecircle/hub/internal/apperrors"
	"github.com/carecircle/hub/internal/models"
	"gorm.io/datatypes"
)

// PayloadValidator checks a payload against the schema of its content key.
type PayloadValidator interface {
	ValidatePayload(contentKey string, payload map[string]any) error
}

// Request describes one notification to send.
type Request struct {
	ContentKey        string         `json:"contentKey"`
	RecipientClientID string         `json:"recipientClientId"`
	SenderClientID    string         `json:"senderClientId"`
	CorrelationID     string         `json:"correlationId"`
	AppointmentID     string         `json:"appointmentId"`
	Payload           map[string]any `json:"payload"`
	// TriggersAt is the delivery time; zero means now.
	TriggersAt time.Time `json:"triggersAt"`
}

// Gateway persists dispatches and hands them to the delivery queue. Callers
// treat it as best effort: nothing here rolls back domain writes.
type Gateway struct {
	store     *Store
	queue     Queue
	validator PayloadValidator
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Gateway)

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func NewGateway(store *Store, queue Queue, validator PayloadValidator, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		store:     store,
		queue:     queue,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Send records the dispatch under its deterministic id and schedules its
// delivery. Sending the same id again replaces the earlier dispatch.
func (g *Gateway) Send(ctx context.Context, req Request) (*models.Dispatch, error) {
	if req.ContentKey == "" || req.RecipientClientID == "" {
		return nil, apperrors.InvalidArg("contentKey and recipientClientId are required")
	}
	if err := g.validator.ValidatePayload(req.ContentKey, req.Payload); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "payload is not serializable", err)
	}

	triggersAt := req.TriggersAt
	if triggersAt.IsZero() {
		triggersAt = g.now()
	}
	triggersAt = triggersAt.UTC()

	d := &models.Dispatch{
		DispatchID:        DispatchID(req.ContentKey, req.RecipientClientID, req.CorrelationID),
		RecipientClientID: req.RecipientClientID,
		SenderClientID:    req.SenderClientID,
		ContentKey:        req.ContentKey,
		CorrelationID:     req.CorrelationID,
		Payload:           datatypes.JSON(payload),
		Status:            models.DispatchStatusScheduled,
		TriggersAt:        &triggersAt,
	}
	if req.AppointmentID != "" {
		d.AppointmentID = &req.AppointmentID
	}

	if err := g.store.Upsert(ctx, d); err != nil {
		return nil, err
	}
	if err := g.queue.Schedule(ctx, d.DispatchID, triggersAt); err != nil {
		return nil, fmt.Errorf("failed to schedule dispatch: %w", err)
	}

	g.logger.Info("Dispatch scheduled",
		"dispatch_id", d.DispatchID,
		"content_key", d.ContentKey,
		"triggers_at", triggersAt,
	)
	return d, nil
}

// Delete cancels the pending delivery and removes the dispatch. Unknown ids
// are a no-op.
func (g *Gateway) Delete(ctx context.Context, dispatchID string) error {
	if err := g.queue.Cancel(ctx, dispatchID); err != nil {
		return err
	}
	existed, err := g.store.Delete(ctx, dispatchID)
	if err != nil {
		return err
	}
	if existed {
		g.logger.Info("Dispatch deleted", "dispatch_id", dispatchID)
	}
	return nil
}

// DeleteForClient removes every dispatch addressed to or sent by clientID and
// returns how many were removed.
func (g *Gateway) DeleteForClient(ctx context.Context, clientID string) (int, error) {
	ids, err := g.store.ListIDsForClient(ctx, clientID)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := g.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// ListBySender returns the dispatch history of a sender.
func (g *Gateway) ListBySender(ctx context.Context, senderClientID string) ([]models.Dispatch, error) {
	return g.store.ListBySender(ctx, senderClientID)
}

func (g *Gateway) Find(ctx context.Context, dispatchID string) (*models.Dispatch, error) {
	return g.store.Find(ctx, dispatchID)
}

func (g *Gateway) Exists(ctx context.Context, dispatchID string) (bool, error) {
	return g.store.Exists(ctx, dispatchID)
}

func (g *Gateway) MarkSent(ctx context.Context, dispatchID string, at time.Time) error {
	return g.store.MarkSent(ctx, dispatchID, at)
}

func (g *Gateway) MarkFailed(ctx context.Context, dispatchID, reason string) error {
	return g.store.MarkFailed(ctx, dispatchID, reason)
}

func (g *Gateway) MarkDelivered(ctx context.Context, dispatchID string, at time.Time) error {
	return g.store.MarkDelivered(ctx, dispatchID, at)
}
