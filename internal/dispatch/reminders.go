package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carecircle/hub/internal/events"
	"github.com/carecircle/hub/internal/models"
)

const (
	reminderLead     = 15 * time.Minute
	longReminderLead = 24 * time.Hour
)

// AppointmentSource loads the current state of an appointment.
type AppointmentSource interface {
	Get(ctx context.Context, id string) (*models.Appointment, error)
}

// Reminders keeps appointment notifications in step with appointment events.
// Every dispatch it creates is correlated by appointment id, so the ids can
// be recomputed when the appointment goes away.
type Reminders struct {
	gateway      *Gateway
	appointments AppointmentSource
	logger       *slog.Logger
}

func NewReminders(gateway *Gateway, appointments AppointmentSource, logger *slog.Logger) *Reminders {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reminders{gateway: gateway, appointments: appointments, logger: logger}
}

// Register subscribes the reminders to the bus.
func (r *Reminders) Register(bus *events.Bus) {
	events.Subscribe(bus, "dispatch.reminders", func(ctx context.Context, e events.NewAppointment) error {
		return r.sync(ctx, e.AppointmentID)
	})
	events.Subscribe(bus, "dispatch.reminders", func(ctx context.Context, e events.UpdatedAppointment) error {
		return r.sync(ctx, e.AppointmentID)
	})
	events.Subscribe(bus, "dispatch.reminders", func(ctx context.Context, e events.DeletedAppointment) error {
		return r.cancel(ctx, e.MemberID, e.UserID, e.AppointmentID)
	})
	events.Subscribe(bus, "dispatch.cleanup", func(ctx context.Context, e events.DeleteMember) error {
		n, err := r.gateway.DeleteForClient(ctx, e.MemberID)
		if err != nil {
			return err
		}
		r.logger.Info("Member dispatches deleted", "member_id", e.MemberID, "count", n)
		return nil
	})
}

// reminderIDs lists every dispatch correlated with an appointment: the member
// notifications and the user's submit reminder.
func reminderIDs(memberID, userID, appointmentID string) []string {
	return []string{
		DispatchID(ContentAppointmentRequest, memberID, appointmentID),
		DispatchID(ContentAppointmentReminder, memberID, appointmentID),
		DispatchID(ContentAppointmentLongReminder, memberID, appointmentID),
		DispatchID(ContentAppointmentSubmitReminder, userID, appointmentID),
	}
}

func (r *Reminders) cancel(ctx context.Context, memberID, userID, appointmentID string) error {
	var errs []error
	for _, id := range reminderIDs(memberID, userID, appointmentID) {
		if err := r.gateway.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Reminders) sync(ctx context.Context, appointmentID string) error {
	a, err := r.appointments.Get(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to load appointment %s: %w", appointmentID, err)
	}

	switch a.Status {
	case models.AppointmentStatusRequested:
		payload := map[string]any{
			"appointmentId": a.ID,
			"link":          a.Link,
		}
		if a.NotBefore != nil {
			payload["notBefore"] = a.NotBefore.UTC().Format(time.RFC3339)
		}
		_, err := r.gateway.Send(ctx, Request{
			ContentKey:        ContentAppointmentRequest,
			RecipientClientID: a.MemberID,
			SenderClientID:    a.UserID,
			CorrelationID:     a.ID,
			AppointmentID:     a.ID,
			Payload:           payload,
		})
		return err

	case models.AppointmentStatusScheduled:
		// the open request became a booking
		if err := r.gateway.Delete(ctx, DispatchID(ContentAppointmentRequest, a.MemberID, a.ID)); err != nil {
			return err
		}
		return errors.Join(
			r.schedule(ctx, a, ContentAppointmentReminder, reminderLead),
			r.schedule(ctx, a, ContentAppointmentLongReminder, longReminderLead),
		)
	}
	return nil
}

// schedule sends the reminder lead before the start, or drops a stale one
// when that moment has already passed.
func (r *Reminders) schedule(ctx context.Context, a *models.Appointment, contentKey string, lead time.Duration) error {
	if a.Start == nil {
		return nil
	}
	id := DispatchID(contentKey, a.MemberID, a.ID)
	triggersAt := a.Start.Add(-lead)
	if !triggersAt.After(r.gateway.now()) {
		r.logger.Debug("Reminder time already passed", "dispatch_id", id, "triggers_at", triggersAt)
		return r.gateway.Delete(ctx, id)
	}

	payload := map[string]any{
		"appointmentId": a.ID,
		"start":         a.Start.UTC().Format(time.RFC3339),
		"link":          a.Link,
	}
	if a.Method != nil {
		payload["method"] = string(*a.Method)
	}

	_, err := r.gateway.Send(ctx, Request{
		ContentKey:        contentKey,
		RecipientClientID: a.MemberID,
		SenderClientID:    a.UserID,
		CorrelationID:     a.ID,
		AppointmentID:     a.ID,
		Payload:           payload,
		TriggersAt:        triggersAt,
	})
	return err
}
