// Package alerts derives a user's alert feed on read. Nothing here is a
// primary record except the per-user dismissals.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/carecircle/hub/internal/apperrors"
	"github.com/carecircle/hub/internal/models"
)

// DispatchLister returns the dispatch history of a sender.
type DispatchLister interface {
	ListBySender(ctx context.Context, senderClientID string) ([]models.Dispatch, error)
}

// AlertTypeResolver maps a content key to the alert it surfaces as.
type AlertTypeResolver interface {
	AlertType(contentKey string) (models.AlertType, bool)
}

// AppointmentAlerts derives the appointment alerts of a member.
type AppointmentAlerts interface {
	MemberAlerts(ctx context.Context, member models.Member) ([]models.Alert, error)
}

// UserDirectory resolves the user, their members and their alert watermark.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListByUser(ctx context.Context, userID string) ([]models.Member, error)
	MarkAlertsSeen(ctx context.Context, userID string, at time.Time) error
}

type Aggregator struct {
	store        *Store
	dispatches   DispatchLister
	resolver     AlertTypeResolver
	appointments AppointmentAlerts
	users        UserDirectory
	logger       *slog.Logger
}

func NewAggregator(store *Store, dispatches DispatchLister, resolver AlertTypeResolver, appointments AppointmentAlerts, users UserDirectory, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		store:        store,
		dispatches:   dispatches,
		resolver:     resolver,
		appointments: appointments,
		users:        users,
		logger:       logger,
	}
}

// GetAlerts builds the feed for members in input order. Per member the feed
// holds memberAssigned, then alerts from the member's sent dispatches in
// sentAt order, then appointment alerts. An alert is new when it is dated
// after lastQueryAlert, or always when there is no watermark.
func (a *Aggregator) GetAlerts(ctx context.Context, userID string, members []models.Member, lastQueryAlert *time.Time) ([]models.Alert, error) {
	dismissed, err := a.store.Dismissed(ctx, userID)
	if err != nil {
		return nil, err
	}

	alerts := []models.Alert{}
	for _, m := range members {
		alerts = append(alerts, models.Alert{
			ID:       models.AlertID(m.ID, models.AlertTypeMemberAssigned),
			MemberID: m.ID,
			Type:     models.AlertTypeMemberAssigned,
			Date:     m.CreatedAt,
		})

		fromDispatches, err := a.dispatchAlerts(ctx, m)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, fromDispatches...)

		fromAppointments, err := a.appointments.MemberAlerts(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("failed to derive appointment alerts: %w", err)
		}
		alerts = append(alerts, fromAppointments...)
	}

	for i := range alerts {
		alerts[i].IsNew = lastQueryAlert == nil || alerts[i].Date.After(*lastQueryAlert)
		_, alerts[i].Dismissed = dismissed[alerts[i].ID]
	}
	return alerts, nil
}

func (a *Aggregator) dispatchAlerts(ctx context.Context, m models.Member) ([]models.Alert, error) {
	sent, err := a.dispatches.ListBySender(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member dispatches: %w", err)
	}

	withDate := make([]models.Dispatch, 0, len(sent))
	for _, d := range sent {
		if d.SentAt != nil {
			withDate = append(withDate, d)
		}
	}
	sort.SliceStable(withDate, func(i, j int) bool {
		return withDate[i].SentAt.Before(*withDate[j].SentAt)
	})

	var alerts []models.Alert
	for _, d := range withDate {
		alertType, ok := a.resolver.AlertType(d.ContentKey)
		if !ok {
			continue
		}
		alerts = append(alerts, models.Alert{
			ID:       models.AlertID(d.DispatchID, alertType),
			MemberID: m.ID,
			Type:     alertType,
			Date:     *d.SentAt,
		})
	}
	return alerts, nil
}

// ForUser builds the feed of every member owned by userID.
func (a *Aggregator) ForUser(ctx context.Context, userID string) ([]models.Alert, error) {
	u, err := a.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	members, err := a.users.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	alerts, err := a.GetAlerts(ctx, userID, members, u.LastQueryAlert)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Alerts derived", "user_id", userID, "members", len(members), "alerts", len(alerts))
	return alerts, nil
}

// MarkSeen moves the watermark; a zero time means now.
func (a *Aggregator) MarkSeen(ctx context.Context, userID string, at time.Time) error {
	return a.users.MarkAlertsSeen(ctx, userID, at)
}

func (a *Aggregator) Dismiss(ctx context.Context, userID, alertID string) error {
	if alertID == "" {
		return apperrors.InvalidArg("alert id is required")
	}
	return a.store.Dismiss(ctx, userID, alertID)
}
