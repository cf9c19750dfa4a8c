package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carecircle/hub/internal/apperrors"
	"github.com/carecircle/hub/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDispatchNotFound = apperrors.NotFound("dispatch not found")

// Store persists dispatch history.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Upsert inserts d or replaces the row with the same dispatch id. A replaced
// row starts over as scheduled.
func (s *Store) Upsert(ctx context.Context, d *models.Dispatch) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dispatch_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"recipient_client_id",
			"sender_client_id",
			"content_key",
			"appointment_id",
			"correlation_id",
			"payload",
			"status",
			"triggers_at",
			"sent_at",
			"delivered_at",
			"failure_reason",
			"updated_at",
		}),
	}).Create(d).Error
	if err != nil {
		return fmt.Errorf("failed to upsert dispatch: %w", err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, id string) (*models.Dispatch, error) {
	var d models.Dispatch
	if err := s.db.WithContext(ctx).First(&d, "dispatch_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDispatchNotFound
		}
		return nil, fmt.Errorf("failed to fetch dispatch: %w", err)
	}
	return &d, nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Dispatch{}).Where("dispatch_id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check dispatch: %w", err)
	}
	return count > 0, nil
}

// Delete removes the row and reports whether one existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("dispatch_id = ?", id).Delete(&models.Dispatch{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete dispatch: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListBySender returns every dispatch sent by the client, oldest first.
func (s *Store) ListBySender(ctx context.Context, senderClientID string) ([]models.Dispatch, error) {
	var list []models.Dispatch
	err := s.db.WithContext(ctx).
		Where("sender_client_id = ?", senderClientID).
		Order("created_at asc").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatches by sender: %w", err)
	}
	return list, nil
}

// ListIDsForClient returns the ids of dispatches addressed to or sent by the
// client.
func (s *Store) ListIDsForClient(ctx context.Context, clientID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Dispatch{}).
		Where("recipient_client_id = ? OR sender_client_id = ?", clientID, clientID).
		Order("dispatch_id asc").
		Pluck("dispatch_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list client dispatches: %w", err)
	}
	return ids, nil
}

func (s *Store) MarkSent(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, id, map[string]any{
		"status":         models.DispatchStatusSent,
		"sent_at":        at.UTC(),
		"failure_reason": "",
	})
}

func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	return s.update(ctx, id, map[string]any{
		"status":         models.DispatchStatusFailed,
		"failure_reason": reason,
	})
}

func (s *Store) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, id, map[string]any{
		"status":       models.DispatchStatusDelivered,
		"delivered_at": at.UTC(),
	})
}

func (s *Store) update(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.Dispatch{}).Where("dispatch_id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update dispatch %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDispatchNotFound
	}
	return nil
}
