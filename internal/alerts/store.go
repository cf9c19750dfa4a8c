package alerts

import (
	"context"
	"fmt"

	"github.com/carecircle/hub/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store keeps the alerts each user dismissed.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Dismiss records the dismissal; dismissing twice is a no-op.
func (s *Store) Dismiss(ctx context.Context, userID, alertID string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.DismissedAlert{UserID: userID, AlertID: alertID}).Error
	if err != nil {
		return fmt.Errorf("failed to dismiss alert: %w", err)
	}
	return nil
}

// Dismissed returns the set of alert ids the user dismissed.
func (s *Store) Dismissed(ctx context.Context, userID string) (map[string]struct{}, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.DismissedAlert{}).
		Where("user_id = ?", userID).
		Pluck("alert_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load dismissed alerts: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
