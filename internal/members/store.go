package members

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carecircle/hub/internal/apperrors"
	"github.com/carecircle/hub/internal/models"
	"gorm.io/gorm"
)

var (
	ErrMemberNotFound = apperrors.NotFound("member not found")
	ErrUserNotFound   = apperrors.NotFound("user not found")
)

// Store persists members and users.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) CreateMember(ctx context.Context, m *models.Member) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

func (s *Store) FindMember(ctx context.Context, id string, includeDeleted bool) (*models.Member, error) {
	db := s.db.WithContext(ctx)
	if includeDeleted {
		db = db.Unscoped()
	}

	var m models.Member
	if err := db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}
	return &m, nil
}

// ListByUser returns the user's live members, oldest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.Member, error) {
	var list []models.Member
	err := s.db.WithContext(ctx).
		Where("primary_user_id = ?", userID).
		Order("created_at asc").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return list, nil
}

func (s *Store) SoftDeleteMember(ctx context.Context, id, deletedBy string) error {
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Member{}).Where("id = ?", id).UpdateColumn("deleted_by", deletedBy).Error; err != nil {
		return fmt.Errorf("failed to stamp member: %w", err)
	}
	if err := db.Where("id = ?", id).Delete(&models.Member{}).Error; err != nil {
		return fmt.Errorf("failed to soft delete member: %w", err)
	}
	return nil
}

func (s *Store) HardDeleteMember(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&models.Member{}).Error; err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}

func (s *Store) UpdateScores(ctx context.Context, memberID string, scores models.Scores, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", memberID).Updates(map[string]any{
		"adherence":         scores.Adherence,
		"wellbeing":         scores.Wellbeing,
		"scores_updated_at": at.UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update member scores: %w", err)
	}
	return nil
}

func (s *Store) FindUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
