package members

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/carecircle/hub/internal/apperrors"
	"github.com/carecircle/hub/internal/events"
	"github.com/carecircle/hub/internal/models"
)

// Service manages members and the users that own them.
type Service struct {
	store  *Store
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store *Store, bus *events.Bus, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, bus: bus, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateMember(ctx context.Context, p CreateParams) (*models.Member, error) {
	if p.PrimaryUserID == "" {
		return nil, apperrors.InvalidArg("primaryUserId is required")
	}
	m := &models.Member{
		ID:            p.ID,
		PrimaryUserID: p.PrimaryUserID,
		FirstName:     strings.TrimSpace(p.FirstName),
		LastName:      strings.TrimSpace(p.LastName),
		Phone:         p.Phone,
	}
	if err := s.store.CreateMember(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("Member created", "member_id", m.ID, "primary_user_id", m.PrimaryUserID)
	return m, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Member, error) {
	return s.store.FindMember(ctx, id, false)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.Member, error) {
	return s.store.ListByUser(ctx, userID)
}

// Delete removes the member and emits DeleteMember after commit so
// appointments and dispatches cascade. A hard delete also purges a member
// that was soft-deleted earlier.
func (s *Service) Delete(ctx context.Context, p DeleteParams) error {
	err := s.store.Transaction(ctx, func(tx *Store) error {
		m, err := tx.FindMember(ctx, p.ID, true)
		if err != nil {
			return err
		}
		if p.Hard {
			return tx.HardDeleteMember(ctx, m.ID)
		}
		if m.DeletedAt.Valid {
			return ErrMemberNotFound
		}
		return tx.SoftDeleteMember(ctx, m.ID, p.DeletedBy)
	})
	if err != nil {
		return err
	}

	s.bus.Emit(ctx, events.DeleteMember{MemberID: p.ID, DeletedBy: p.DeletedBy, Hard: p.Hard})
	s.logger.Info("Member deleted", "member_id", p.ID, "hard", p.Hard, "deleted_by", p.DeletedBy)
	return nil
}

// ApplyScores stores the latest appointment scores on the member. Cleared
// notes carry no scores and leave the member untouched.
func (s *Service) ApplyScores(ctx context.Context, memberID string, scores *models.Scores) error {
	if scores == nil {
		return nil
	}
	return s.store.UpdateScores(ctx, memberID, *scores, s.now())
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.store.FindUser(ctx, id)
}

// UpdateUser applies a partial update and emits UpdatedUser with the
// resulting name and phone.
func (s *Service) UpdateUser(ctx context.Context, p UpdateUserParams) (*models.User, error) {
	fields := map[string]any{}
	if p.Name != nil {
		fields["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Phone != nil {
		fields["phone"] = *p.Phone
	}
	if p.Timezone != nil {
		if _, err := time.LoadLocation(*p.Timezone); err != nil {
			return nil, apperrors.InvalidArg("unknown timezone " + *p.Timezone)
		}
		fields["timezone"] = *p.Timezone
	}
	if len(fields) > 0 {
		if err := s.store.UpdateUser(ctx, p.UserID, fields); err != nil {
			return nil, err
		}
	}

	u, err := s.store.FindUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		s.bus.Emit(ctx, events.UpdatedUser{UserID: u.ID, Name: u.Name, Phone: u.Phone})
	}
	return u, nil
}

// FindOrCreateUser resolves a login by email, creating the user on first
// sign-in, and stamps the login time.
func (s *Service) FindOrCreateUser(ctx context.Context, email, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.InvalidArg("email is required")
	}

	now := s.now().UTC()
	u, err := s.store.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		u = &models.User{Email: email, Name: name, LastLoginAt: &now}
		if err := s.store.CreateUser(ctx, u); err != nil {
			return nil, err
		}
		s.logger.Info("User created", "user_id", u.ID)
		return u, nil
	case err != nil:
		return nil, err
	}

	if err := s.store.UpdateUser(ctx, u.ID, map[string]any{"last_login_at": now}); err != nil {
		return nil, err
	}
	u.LastLoginAt = &now
	return u, nil
}

// MarkAlertsSeen moves the user's alert watermark; alerts dated after it
// count as new.
func (s *Service) MarkAlertsSeen(ctx context.Context, userID string, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}
	return s.store.UpdateUser(ctx, userID, map[string]any{"last_query_alert": at.UTC()})
}
