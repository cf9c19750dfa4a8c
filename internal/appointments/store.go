package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carecircle/hub/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists appointments, their notes and recordings.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn against a Store bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func unscopedNotes(db *gorm.DB) *gorm.DB { return db.Unscoped() }

// FindByID returns a non-deleted appointment with its notes.
func (s *Store) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	err := s.db.WithContext(ctx).Preload("Notes").First(&a, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentIDNotFound
		}
		return nil, fmt.Errorf("failed to fetch appointment: %w", err)
	}
	return &a, nil
}

// FindByIDUnscoped also returns soft-deleted appointments.
func (s *Store) FindByIDUnscoped(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	err := s.db.WithContext(ctx).Unscoped().Preload("Notes", unscopedNotes).First(&a, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentIDNotFound
		}
		return nil, fmt.Errorf("failed to fetch appointment: %w", err)
	}
	return &a, nil
}

// FindRequested returns the oldest open request for the pair, or nil.
func (s *Store) FindRequested(ctx context.Context, memberID, userID string) (*models.Appointment, error) {
	var found []models.Appointment
	err := s.db.WithContext(ctx).
		Preload("Notes").
		Where("member_id = ? AND user_id = ? AND status = ?", memberID, userID, models.AppointmentStatusRequested).
		Order("created_at asc").
		Limit(1).
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requested appointment: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (s *Store) Create(ctx context.Context, a *models.Appointment) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error; err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, a *models.Appointment) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(a).Error; err != nil {
		return fmt.Errorf("failed to save appointment: %w", err)
	}
	return nil
}

// SaveNotes creates or replaces the notes of an appointment.
func (s *Store) SaveNotes(ctx context.Context, appointmentID string, notes *models.Notes) error {
	db := s.db.WithContext(ctx)

	var existing models.Notes
	err := db.Where("appointment_id = ?", appointmentID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		notes.ID = ""
		notes.AppointmentID = appointmentID
		if err := db.Create(notes).Error; err != nil {
			return fmt.Errorf("failed to create notes: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to fetch notes: %w", err)
	}

	notes.ID = existing.ID
	notes.AppointmentID = appointmentID
	notes.CreatedAt = existing.CreatedAt
	if err := db.Save(notes).Error; err != nil {
		return fmt.Errorf("failed to update notes: %w", err)
	}
	return nil
}

// RemoveNotes drops the notes of an appointment permanently.
func (s *Store) RemoveNotes(ctx context.Context, appointmentID string) error {
	err := s.db.WithContext(ctx).Unscoped().Where("appointment_id = ?", appointmentID).Delete(&models.Notes{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove notes: %w", err)
	}
	return nil
}

// SoftDelete stamps deleted_by and deleted_at on the appointment and its
// notes and recordings.
func (s *Store) SoftDelete(ctx context.Context, id, deletedBy string) error {
	db := s.db.WithContext(ctx)

	steps := []struct {
		what  string
		model any
		where string
	}{
		{"notes", &models.Notes{}, "appointment_id = ?"},
		{"recordings", &models.Recording{}, "appointment_id = ?"},
		{"appointment", &models.Appointment{}, "id = ?"},
	}
	for _, step := range steps {
		if err := db.Model(step.model).Where(step.where, id).UpdateColumn("deleted_by", deletedBy).Error; err != nil {
			return fmt.Errorf("failed to stamp %s: %w", step.what, err)
		}
		if err := db.Where(step.where, id).Delete(step.model).Error; err != nil {
			return fmt.Errorf("failed to soft delete %s: %w", step.what, err)
		}
	}
	return nil
}

// HardDelete physically removes the appointment with its notes and
// recordings, whether or not it was soft-deleted first.
func (s *Store) HardDelete(ctx context.Context, id string) error {
	db := s.db.WithContext(ctx).Unscoped()

	if err := db.Where("appointment_id = ?", id).Delete(&models.Notes{}).Error; err != nil {
		return fmt.Errorf("failed to delete notes: %w", err)
	}
	if err := db.Where("appointment_id = ?", id).Delete(&models.Recording{}).Error; err != nil {
		return fmt.Errorf("failed to delete recordings: %w", err)
	}
	if err := db.Where("id = ?", id).Delete(&models.Appointment{}).Error; err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

// ListByMember returns the member's appointments oldest first.
func (s *Store) ListByMember(ctx context.Context, memberID string, includeDeleted bool) ([]models.Appointment, error) {
	db := s.db.WithContext(ctx)
	if includeDeleted {
		db = db.Unscoped().Preload("Notes", unscopedNotes)
	} else {
		db = db.Preload("Notes")
	}

	var list []models.Appointment
	if err := db.Where("member_id = ?", memberID).Order("created_at asc").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list member appointments: %w", err)
	}
	return list, nil
}

// ListFuture returns not-done appointments starting after now, by start.
func (s *Store) ListFuture(ctx context.Context, f FutureFilter, now time.Time) ([]models.Appointment, error) {
	q := s.db.WithContext(ctx).
		Preload("Notes").
		Where("start_at > ? AND status <> ?", now.UTC(), models.AppointmentStatusDone)
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.MemberID != "" {
		q = q.Where("member_id = ?", f.MemberID)
	}
	if f.JourneyID != "" {
		q = q.Where("journey_id = ?", f.JourneyID)
	}

	var list []models.Appointment
	if err := q.Order("start_at asc").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list future appointments: %w", err)
	}
	return list, nil
}

// ListUnsubmitted returns scheduled appointments that ended before cutoff.
// An empty memberID matches every member.
func (s *Store) ListUnsubmitted(ctx context.Context, memberID string, cutoff time.Time) ([]models.Appointment, error) {
	q := s.db.WithContext(ctx).
		Where("status = ? AND end_at IS NOT NULL AND end_at < ?", models.AppointmentStatusScheduled, cutoff.UTC())
	if memberID != "" {
		q = q.Where("member_id = ?", memberID)
	}

	var list []models.Appointment
	if err := q.Order("end_at asc").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list unsubmitted appointments: %w", err)
	}
	return list, nil
}

func (s *Store) CreateRecording(ctx context.Context, r *models.Recording) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	return nil
}

func (s *Store) FindRecording(ctx context.Context, id string) (*models.Recording, error) {
	var r models.Recording
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordingNotFound
		}
		return nil, fmt.Errorf("failed to fetch recording: %w", err)
	}
	return &r, nil
}

func (s *Store) SaveRecording(ctx context.Context, r *models.Recording) error {
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}
	return nil
}

// ListMemberRecordings returns the member's live recordings, oldest first.
func (s *Store) ListMemberRecordings(ctx context.Context, memberID string) ([]models.Recording, error) {
	var list []models.Recording
	if err := s.db.WithContext(ctx).Where("member_id = ?", memberID).Order("created_at asc").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	return list, nil
}
