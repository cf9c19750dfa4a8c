package appointments

import (
	"context"
	"sort"

	"github.com/carecircle/hub/internal/models"
)

// MemberAlerts derives the appointment alerts of one member: one
// appointmentReviewed per reviewed recording, then one
// appointmentSubmitOverdue per scheduled appointment whose end is more than a
// day old.
func (s *Service) MemberAlerts(ctx context.Context, member models.Member) ([]models.Alert, error) {
	recordings, err := s.store.ListMemberRecordings(ctx, member.ID)
	if err != nil {
		return nil, err
	}

	reviewed := make([]models.Recording, 0, len(recordings))
	for _, r := range recordings {
		if r.Review != nil {
			reviewed = append(reviewed, r)
		}
	}
	sort.SliceStable(reviewed, func(i, j int) bool {
		return reviewed[i].Review.CreatedAt.Before(reviewed[j].Review.CreatedAt)
	})

	alerts := make([]models.Alert, 0, len(reviewed))
	for _, r := range reviewed {
		alerts = append(alerts, models.Alert{
			ID:       models.AlertID(r.ID, models.AlertTypeAppointmentReviewed),
			MemberID: member.ID,
			Type:     models.AlertTypeAppointmentReviewed,
			Date:     r.Review.CreatedAt,
		})
	}

	overdue, err := s.store.ListUnsubmitted(ctx, member.ID, s.now().Add(-submitGracePeriod))
	if err != nil {
		return nil, err
	}
	for _, a := range overdue {
		alerts = append(alerts, models.Alert{
			ID:       models.AlertID(a.ID, models.AlertTypeAppointmentSubmitOverdue),
			MemberID: member.ID,
			Type:     models.AlertTypeAppointmentSubmitOverdue,
			Date:     a.End.Add(submitGracePeriod),
		})
	}

	return alerts, nil
}

// GetAlerts concatenates MemberAlerts for each member, in input order.
func (s *Service) GetAlerts(ctx context.Context, userID string, members []models.Member) ([]models.Alert, error) {
	var alerts []models.Alert
	for _, m := range members {
		memberAlerts, err := s.MemberAlerts(ctx, m)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, memberAlerts...)
	}
	s.logger.Debug("Derived appointment alerts", "user_id", userID, "members", len(members), "alerts", len(alerts))
	return alerts, nil
}
