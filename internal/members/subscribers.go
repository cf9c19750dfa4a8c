package members

import (
	"context"

	"github.com/carecircle/hub/internal/events"
)

// RegisterSubscribers keeps member scores in step with appointment notes.
func RegisterSubscribers(bus *events.Bus, svc *Service) {
	events.Subscribe(bus, "members.scores", func(ctx context.Context, e events.UpdatedAppointmentScores) error {
		return svc.ApplyScores(ctx, e.MemberID, e.Scores)
	})
}
