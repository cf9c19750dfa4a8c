package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/carecircle/hub/internal/models"
)

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Touching ranges (one ends exactly when the other starts) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// HasOverlap checks the candidate range against the user's non-deleted
// scheduled and done appointments, ignoring excludeID.
func (s *Store) HasOverlap(ctx context.Context, userID string, start, end time.Time, excludeID string) (bool, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("user_id = ? AND status IN ?", userID, []models.AppointmentStatus{
			models.AppointmentStatusScheduled,
			models.AppointmentStatusDone,
		}).
		Where("start_at IS NOT NULL AND end_at IS NOT NULL").
		Where("end_at > ?", start.UTC())
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var candidates []models.Appointment
	if err := q.Find(&candidates).Error; err != nil {
		return false, fmt.Errorf("failed to load appointments for overlap check: %w", err)
	}

	for _, c := range candidates {
		if Overlaps(start, end, *c.Start, *c.End) {
			return true, nil
		}
	}
	return false, nil
}
