package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carecircle/hub/internal/apperrors"
	"github.com/carecircle/hub/internal/events"
	"github.com/carecircle/hub/internal/models"
	"github.com/oapi-codegen/nullable"
)

const submitGracePeriod = 24 * time.Hour

// Service owns the appointment lifecycle. Every mutation commits in one
// transaction before any event is emitted.
type Service struct {
	store    *Store
	bus      *events.Bus
	logger   *slog.Logger
	linkBase string
	locks    *keyedMutex
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store *Store, bus *events.Bus, logger *slog.Logger, linkBase string, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		bus:      bus,
		logger:   logger,
		linkBase: strings.TrimRight(linkBase, "/"),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) decorate(a *models.Appointment) *models.Appointment {
	if a != nil {
		a.Link = fmt.Sprintf("%s/%s", s.linkBase, a.ID)
	}
	return a
}

func (s *Service) decorateAll(list []models.Appointment) []models.Appointment {
	for i := range list {
		s.decorate(&list[i])
	}
	return list
}

func utcPtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}

// userTransaction runs fn in a transaction while holding userID's lock, so
// the overlap check and the write cannot interleave with another booking for
// the same user. The lock is released before the caller emits events.
func (s *Service) userTransaction(ctx context.Context, userID string, fn func(tx *Store) error) error {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.store.Transaction(ctx, fn)
}

// Request records that a member asked for a meeting. Without an explicit id a
// second request for the same pair only moves notBefore of the open request.
func (s *Service) Request(ctx context.Context, p RequestParams) (*models.Appointment, error) {
	if p.MemberID == "" || p.UserID == "" {
		return nil, apperrors.InvalidArg("memberId and userId are required")
	}
	if p.NotBefore.IsZero() {
		return nil, apperrors.InvalidArg("notBefore is required")
	}

	var (
		result  *models.Appointment
		created bool
	)
	err := s.userTransaction(ctx, p.UserID, func(tx *Store) error {
		var target *models.Appointment
		if p.ID != "" {
			existing, err := tx.FindByIDUnscoped(ctx, p.ID)
			switch {
			case errors.Is(err, ErrAppointmentIDNotFound):
			case err != nil:
				return err
			case existing.Deleted:
				return ErrAppointmentIDNotFound
			default:
				target = existing
			}
		} else {
			existing, err := tx.FindRequested(ctx, p.MemberID, p.UserID)
			if err != nil {
				return err
			}
			target = existing
		}

		if target == nil {
			result = &models.Appointment{
				ID:        p.ID,
				MemberID:  p.MemberID,
				UserID:    p.UserID,
				Status:    models.AppointmentStatusRequested,
				NotBefore: utcPtr(p.NotBefore),
			}
			if p.JourneyID != "" {
				result.JourneyID = &p.JourneyID
			}
			created = true
			return tx.Create(ctx, result)
		}

		target.MemberID = p.MemberID
		target.UserID = p.UserID
		target.NotBefore = utcPtr(p.NotBefore)
		if p.JourneyID != "" {
			target.JourneyID = &p.JourneyID
		}
		result = target
		return tx.Save(ctx, target)
	})
	if err != nil {
		return nil, err
	}

	// a merged request only refreshes the pending request notification
	if created {
		s.bus.Emit(ctx, events.NewAppointment{
			MemberID:      result.MemberID,
			UserID:        result.UserID,
			AppointmentID: result.ID,
		})
	} else {
		s.bus.Emit(ctx, events.UpdatedAppointment{
			MemberID:      result.MemberID,
			UserID:        result.UserID,
			AppointmentID: result.ID,
		})
	}

	s.logger.Info("Appointment requested",
		"appointment_id", result.ID,
		"member_id", result.MemberID,
		"user_id", result.UserID,
		"created", created,
	)
	return s.decorate(result), nil
}

// Schedule books a time slot. An open request for the pair (or the row named
// by id) is converted in place; otherwise a new scheduled row is inserted.
func (s *Service) Schedule(ctx context.Context, p ScheduleParams) (*models.Appointment, error) {
	if p.MemberID == "" || p.UserID == "" {
		return nil, apperrors.InvalidArg("memberId and userId are required")
	}
	if !p.Method.Valid() {
		return nil, apperrors.InvalidArg(fmt.Sprintf("unsupported method %q", p.Method))
	}
	if !p.Start.Before(p.End) {
		return nil, ErrInvalidTimeRange
	}

	var (
		result  *models.Appointment
		created bool
	)
	err := s.userTransaction(ctx, p.UserID, func(tx *Store) error {
		var target *models.Appointment
		if p.ID != "" {
			existing, err := tx.FindByIDUnscoped(ctx, p.ID)
			switch {
			case errors.Is(err, ErrAppointmentIDNotFound):
			case err != nil:
				return err
			case existing.Deleted:
				return ErrAppointmentIDNotFound
			default:
				target = existing
			}
		} else {
			existing, err := tx.FindRequested(ctx, p.MemberID, p.UserID)
			if err != nil {
				return err
			}
			target = existing
		}

		excludeID := p.ID
		if target != nil {
			excludeID = target.ID
		}
		overlaps, err := tx.HasOverlap(ctx, p.UserID, p.Start, p.End, excludeID)
		if err != nil {
			return err
		}
		if overlaps {
			return ErrAppointmentOverlaps
		}

		method := p.Method
		if target == nil {
			result = &models.Appointment{
				ID:       p.ID,
				MemberID: p.MemberID,
				UserID:   p.UserID,
				Status:   models.AppointmentStatusScheduled,
				Start:    utcPtr(p.Start),
				End:      utcPtr(p.End),
				Method:   &method,
			}
			if p.JourneyID != "" {
				result.JourneyID = &p.JourneyID
			}
			created = true
			return tx.Create(ctx, result)
		}

		target.MemberID = p.MemberID
		target.UserID = p.UserID
		if target.Status != models.AppointmentStatusDone {
			target.Status = models.AppointmentStatusScheduled
		}
		target.Start = utcPtr(p.Start)
		target.End = utcPtr(p.End)
		target.Method = &method
		if p.JourneyID != "" {
			target.JourneyID = &p.JourneyID
		}
		result = target
		return tx.Save(ctx, target)
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.bus.Emit(ctx, events.NewAppointment{
			MemberID:      result.MemberID,
			UserID:        result.UserID,
			AppointmentID: result.ID,
		})
	} else {
		s.bus.Emit(ctx, events.UpdatedAppointment{
			MemberID:      result.MemberID,
			UserID:        result.UserID,
			AppointmentID: result.ID,
		})
	}

	s.logger.Info("Appointment scheduled",
		"appointment_id", result.ID,
		"user_id", result.UserID,
		"start", result.Start,
		"created", created,
	)
	return s.decorate(result), nil
}

// End marks the appointment done, applying only the fields present in p.
func (s *Service) End(ctx context.Context, p EndParams) (*models.Appointment, error) {
	var result *models.Appointment
	err := s.store.Transaction(ctx, func(tx *Store) error {
		a, err := tx.FindByID(ctx, p.ID)
		if err != nil {
			return err
		}

		if p.NoShow.IsSpecified() {
			if p.NoShow.IsNull() {
				a.NoShow = false
			} else {
				a.NoShow = p.NoShow.MustGet()
			}
		}
		if p.NoShowReason.IsSpecified() {
			if p.NoShowReason.IsNull() {
				a.NoShowReason = nil
			} else {
				reason := p.NoShowReason.MustGet()
				a.NoShowReason = &reason
			}
		}
		a.Status = models.AppointmentStatusDone

		if err := tx.Save(ctx, a); err != nil {
			return err
		}
		if err := applyNotes(ctx, tx, a, p.Notes); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if p.Notes.IsSpecified() {
		s.emitScores(ctx, result)
	}
	return s.decorate(result), nil
}

// UpdateNotes replaces or, with an explicit null, removes the notes.
func (s *Service) UpdateNotes(ctx context.Context, p UpdateNotesParams) (*models.Appointment, error) {
	if !p.Notes.IsSpecified() {
		return nil, apperrors.InvalidArg("notes must be provided (null removes them)")
	}

	var result *models.Appointment
	err := s.store.Transaction(ctx, func(tx *Store) error {
		a, err := tx.FindByID(ctx, p.AppointmentID)
		if err != nil {
			return err
		}
		if err := applyNotes(ctx, tx, a, p.Notes); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitScores(ctx, result)
	return s.decorate(result), nil
}

func applyNotes(ctx context.Context, tx *Store, a *models.Appointment, notes nullable.Nullable[NotesInput]) error {
	if !notes.IsSpecified() {
		return nil
	}
	if notes.IsNull() {
		a.Notes = nil
		return tx.RemoveNotes(ctx, a.ID)
	}

	n := notes.MustGet().toModel()
	if err := tx.SaveNotes(ctx, a.ID, n); err != nil {
		return err
	}
	a.Notes = n
	return nil
}

func (s *Service) emitScores(ctx context.Context, a *models.Appointment) {
	var scores *models.Scores
	if a.Notes != nil {
		scores = a.Notes.Scores
	}
	s.bus.Emit(ctx, events.UpdatedAppointmentScores{MemberID: a.MemberID, Scores: scores})
}

// Delete soft-deletes the appointment, or purges it when p.Hard is set. A hard
// delete also purges rows that were soft-deleted earlier.
func (s *Service) Delete(ctx context.Context, p DeleteParams) error {
	var target *models.Appointment
	err := s.store.Transaction(ctx, func(tx *Store) error {
		a, err := tx.FindByIDUnscoped(ctx, p.ID)
		if err != nil {
			return err
		}
		target = a
		if p.Hard {
			return tx.HardDelete(ctx, a.ID)
		}
		if a.Deleted {
			return ErrAppointmentIDNotFound
		}
		return tx.SoftDelete(ctx, a.ID, p.DeletedBy)
	})
	if err != nil {
		return err
	}

	s.bus.Emit(ctx, events.DeletedAppointment{
		MemberID:      target.MemberID,
		UserID:        target.UserID,
		AppointmentID: target.ID,
		Hard:          p.Hard,
	})
	s.logger.Info("Appointment deleted", "appointment_id", target.ID, "hard", p.Hard, "deleted_by", p.DeletedBy)
	return nil
}

// DeleteMemberAppointments cascades Delete over every appointment of a member.
func (s *Service) DeleteMemberAppointments(ctx context.Context, p DeleteMemberParams) ([]string, error) {
	var affected []models.Appointment
	err := s.store.Transaction(ctx, func(tx *Store) error {
		list, err := tx.ListByMember(ctx, p.MemberID, true)
		if err != nil {
			return err
		}
		for _, a := range list {
			if p.Hard {
				if err := tx.HardDelete(ctx, a.ID); err != nil {
					return err
				}
				affected = append(affected, a)
				continue
			}
			if a.Deleted {
				continue
			}
			if err := tx.SoftDelete(ctx, a.ID, p.DeletedBy); err != nil {
				return err
			}
			affected = append(affected, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(affected))
	for _, a := range affected {
		ids = append(ids, a.ID)
		s.bus.Emit(ctx, events.DeletedAppointment{
			MemberID:      a.MemberID,
			UserID:        a.UserID,
			AppointmentID: a.ID,
			Hard:          p.Hard,
		})
	}
	s.logger.Info("Member appointments deleted", "member_id", p.MemberID, "count", len(ids), "hard", p.Hard)
	return ids, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Appointment, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decorate(a), nil
}

// GetIncludingDeleted is the audit read path.
func (s *Service) GetIncludingDeleted(ctx context.Context, id string) (*models.Appointment, error) {
	a, err := s.store.FindByIDUnscoped(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decorate(a), nil
}

func (s *Service) ListByMember(ctx context.Context, memberID string, includeDeleted bool) ([]models.Appointment, error) {
	list, err := s.store.ListByMember(ctx, memberID, includeDeleted)
	if err != nil {
		return nil, err
	}
	return s.decorateAll(list), nil
}

// GetFutureAppointments lists upcoming, not yet done appointments by start.
func (s *Service) GetFutureAppointments(ctx context.Context, f FutureFilter) ([]models.Appointment, error) {
	list, err := s.store.ListFuture(ctx, f, s.now())
	if err != nil {
		return nil, err
	}
	return s.decorateAll(list), nil
}

// ListUnsubmitted returns scheduled appointments whose end passed more than
// the submit grace period ago, across all members.
func (s *Service) ListUnsubmitted(ctx context.Context) ([]models.Appointment, error) {
	return s.store.ListUnsubmitted(ctx, "", s.now().Add(-submitGracePeriod))
}

// AddRecording attaches a recording to a live appointment.
func (s *Service) AddRecording(ctx context.Context, p RecordingParams) (*models.Recording, error) {
	a, err := s.store.FindByID(ctx, p.AppointmentID)
	if err != nil {
		return nil, err
	}
	userID := p.UserID
	if userID == "" {
		userID = a.UserID
	}
	r := &models.Recording{
		ID:            p.ID,
		AppointmentID: a.ID,
		MemberID:      a.MemberID,
		UserID:        userID,
	}
	if err := s.store.CreateRecording(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ReviewRecording sets (or replaces) the review of a recording.
func (s *Service) ReviewRecording(ctx context.Context, p ReviewParams) (*models.Recording, error) {
	r, err := s.store.FindRecording(ctx, p.RecordingID)
	if err != nil {
		return nil, err
	}
	r.Review = &models.RecordingReview{
		UserID:    p.UserID,
		Content:   p.Content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveRecording(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}
