package appointments

import (
	"context"

	"github.com/carecircle/hub/internal/events"
)

// RegisterSubscribers cascades member deletion into the member's appointments.
func RegisterSubscribers(bus *events.Bus, svc *Service) {
	events.Subscribe(bus, "appointments.delete-member", func(ctx context.Context, e events.DeleteMember) error {
		_, err := svc.DeleteMemberAppointments(ctx, DeleteMemberParams{
			MemberID:  e.MemberID,
			DeletedBy: e.DeletedBy,
			Hard:      e.Hard,
		})
		return err
	})
}
