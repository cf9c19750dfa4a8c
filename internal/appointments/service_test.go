package appointments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/carecircle/hub/internal/events"
	"github.com/carecircle/hub/internal/models"
	"github.com/carecircle/hub/internal/testutil"
	"github.com/oapi-codegen/nullable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) record(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count(t events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

type harness struct {
	svc *Service
	db  *gorm.DB
	rec *recorder
	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{db: testutil.NewDB(t), rec: &recorder{}, now: baseTime}

	bus := events.NewBus(nil)
	for _, typ := range []events.Type{
		events.TypeNewAppointment,
		events.TypeUpdatedAppointment,
		events.TypeDeletedAppointment,
		events.TypeUpdatedAppointmentScores,
	} {
		bus.On(typ, "recorder", h.rec.record)
	}

	h.svc = NewService(NewStore(h.db), bus, nil, "https://app.example.com/appointments/",
		WithClock(func() time.Time { return h.now }))
	return h
}

func (h *harness) schedule(t *testing.T, userID, memberID string, start time.Time, d time.Duration) *models.Appointment {
	t.Helper()
	a, err := h.svc.Schedule(context.Background(), ScheduleParams{
		UserID:   userID,
		MemberID: memberID,
		Method:   models.AppointmentMethodVideo,
		Start:    start,
		End:      start.Add(d),
	})
	require.NoError(t, err)
	return a
}

func TestSchedule_RejectsOverlappingSlots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := baseTime.Add(24 * time.Hour)
	first := h.schedule(t, "user-1", "member-1", start, 30*time.Minute)

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"exact", start, start.Add(30 * time.Minute)},
		{"minus 15m", start.Add(-15 * time.Minute), start.Add(15 * time.Minute)},
		{"plus 15m", start.Add(15 * time.Minute), start.Add(45 * time.Minute)},
		{"contained", start.Add(5 * time.Minute), start.Add(10 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Schedule(ctx, ScheduleParams{
				UserID:   "user-1",
				MemberID: "member-2",
				Method:   models.AppointmentMethodPhone,
				Start:    tt.start,
				End:      tt.end,
			})
			assert.ErrorIs(t, err, ErrAppointmentOverlaps)
		})
	}

	stored, err := h.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, stored.Start.Equal(start))
	assert.True(t, stored.End.Equal(start.Add(30*time.Minute)))
	assert.Equal(t, models.AppointmentStatusScheduled, stored.Status)

	// adjacent slot and another user's calendar are free
	h.schedule(t, "user-1", "member-2", start.Add(30*time.Minute), 30*time.Minute)
	h.schedule(t, "user-2", "member-3", start, 30*time.Minute)
}

func TestSchedule_InvalidInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Schedule(ctx, ScheduleParams{
		UserID: "user-1", MemberID: "member-1", Method: models.AppointmentMethodChat,
		Start: baseTime, End: baseTime,
	})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	_, err = h.svc.Schedule(ctx, ScheduleParams{
		UserID: "user-1", MemberID: "member-1", Method: "carrier-pigeon",
		Start: baseTime, End: baseTime.Add(time.Hour),
	})
	assert.Error(t, err)
}

func TestRequest_MergesByPair(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Request(ctx, RequestParams{MemberID: "member-1", UserID: "user-1", NotBefore: baseTime.Add(2 * time.Hour)})
	require.NoError(t, err)
	second, err := h.svc.Request(ctx, RequestParams{MemberID: "member-1", UserID: "user-1", NotBefore: baseTime.Add(5 * time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.NotBefore.Equal(baseTime.Add(5*time.Hour)))
	assert.Equal(t, models.AppointmentStatusRequested, second.Status)
	assert.Equal(t, "https://app.example.com/appointments/"+first.ID, second.Link)
	assert.Equal(t, 1, h.rec.count(events.TypeNewAppointment))
	assert.Equal(t, 1, h.rec.count(events.TypeUpdatedAppointment), "merge refreshes the request notification")

	stored, err := h.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, stored.NotBefore.Equal(baseTime.Add(5*time.Hour)))
}

func TestSchedule_SubscriberCanCallBackForSameUser(t *testing.T) {
	db := testutil.NewDB(t)
	bus := events.NewBus(nil)
	svc := NewService(NewStore(db), bus, nil, "https://app.example.com/appointments/",
		WithClock(func() time.Time { return baseTime }))

	var followUpErr error
	events.Subscribe(bus, "follow-up", func(ctx context.Context, e events.NewAppointment) error {
		if e.MemberID != "member-1" {
			return nil
		}
		_, followUpErr = svc.Request(ctx, RequestParams{MemberID: "member-2", UserID: e.UserID, NotBefore: baseTime})
		return followUpErr
	})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Schedule(context.Background(), ScheduleParams{
			UserID:   "user-1",
			MemberID: "member-1",
			Method:   models.AppointmentMethodPhone,
			Start:    baseTime.Add(time.Hour),
			End:      baseTime.Add(2 * time.Hour),
		})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Schedule did not return while a subscriber booked for the same user")
	}
	require.NoError(t, followUpErr)

	list, err := svc.ListByMember(context.Background(), "member-2", false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRequest_ExplicitIDOverrides(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Request(ctx, RequestParams{MemberID: "member-1", UserID: "user-1", NotBefore: baseTime})
	require.NoError(t, err)

	other, err := h.svc.Request(ctx, RequestParams{ID: "explicit-id", MemberID: "member-1", UserID: "user-1", NotBefore: baseTime})
	require.NoError(t, err)
	assert.Equal(t, "explicit-id", other.ID)
	assert.NotEqual(t, first.ID, other.ID)

	reassigned, err := h.svc.Request(ctx, RequestParams{ID: "explicit-id", MemberID: "member-1", UserID: "user-2", NotBefore: baseTime.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "user-2", reassigned.UserID)
	assert.Equal(t, 2, h.rec.count(events.TypeNewAppointment))
}

func TestSchedule_ConvertsOpenRequestInPlace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	requested, err := h.svc.Request(ctx, RequestParams{MemberID: "member-1", UserID: "user-1", NotBefore: baseTime})
	require.NoError(t, err)

	scheduled := h.schedule(t, "user-1", "member-1", baseTime.Add(3*time.Hour), time.Hour)

	assert.Equal(t, requested.ID, scheduled.ID)
	assert.Equal(t, models.AppointmentStatusScheduled, scheduled.Status)
	assert.Equal(t, 1, h.rec.count(events.TypeNewAppointment), "overwrite must not emit NewAppointment")
	assert.Equal(t, 1, h.rec.count(events.TypeUpdatedAppointment))

	list, err := h.svc.ListByMember(ctx, "member-1", true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSchedule_ReschedulingSameAppointmentIgnoresItself(t *testing.T) {
	h := newHarness(t)
	start := baseTime.Add(24 * time.Hour)
	a := h.schedule(t, "user-1", "member-1", start, time.Hour)

	moved, err := h.svc.Schedule(context.Background(), ScheduleParams{
		ID: a.ID, UserID: "user-1", MemberID: "member-1", Method: models.AppointmentMethodVideo,
		Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, a.ID, moved.ID)
}

func TestSchedule_ReusesSlotFreedByDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := baseTime.Add(48 * time.Hour)

	a := h.schedule(t, "user-1", "member-1", start, 30*time.Minute)
	require.NoError(t, h.svc.Delete(ctx, DeleteParams{ID: a.ID, DeletedBy: "user-1"}))

	b := h.schedule(t, "user-1", "member-2", start, 30*time.Minute)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSchedule_ConcurrentSameSlot(t *testing.T) {
	h := newHarness(t)
	start := baseTime.Add(24 * time.Hour)

	const attempts = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		overlaps  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.Schedule(context.Background(), ScheduleParams{
				UserID:   "user-1",
				MemberID: "member-" + string(rune('a'+i)),
				Method:   models.AppointmentMethodVideo,
				Start:    start,
				End:      start.Add(30 * time.Minute),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, ErrAppointmentOverlaps):
				overlaps++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, overlaps)
}

func TestEnd_PartialUpdateKeepsOmittedFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.schedule(t, "user-1", "member-1", baseTime.Add(-2*time.Hour), time.Hour)

	_, err := h.svc.End(ctx, EndParams{
		ID:           a.ID,
		NoShow:       nullable.NewNullableWithValue(true),
		NoShowReason: nullable.NewNullableWithValue("X"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, h.rec.count(events.TypeUpdatedAppointmentScores))

	ended, err := h.svc.End(ctx, EndParams{
		ID: a.ID,
		Notes: nullable.NewNullableWithValue(NotesInput{
			Recap:          "talked about sleep",
			UserActionItem: "send resources",
			Scores:         &models.Scores{Adherence: 5, Wellbeing: 7},
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, models.AppointmentStatusDone, ended.Status)
	assert.True(t, ended.NoShow)
	require.NotNil(t, ended.NoShowReason)
	assert.Equal(t, "X", *ended.NoShowReason)
	require.NotNil(t, ended.Notes)
	assert.Equal(t, "talked about sleep", ended.Notes.Recap)
	assert.Equal(t, 1, h.rec.count(events.TypeUpdatedAppointmentScores))

	stored, err := h.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.NoShow)
	require.NotNil(t, stored.Notes)
	assert.Equal(t, 7, stored.Notes.Scores.Wellbeing)

	cleared, err := h.svc.End(ctx, EndParams{ID: a.ID, NoShowReason: nullable.NewNullNullable[string]()})
	require.NoError(t, err)
	assert.Nil(t, cleared.NoShowReason)
	assert.True(t, cleared.NoShow)
}

func TestEnd_NotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.End(ctx, EndParams{ID: "missing"})
	assert.ErrorIs(t, err, ErrAppointmentIDNotFound)

	a := h.schedule(t, "user-1", "member-1", baseTime, time.Hour)
	require.NoError(t, h.svc.Delete(ctx, DeleteParams{ID: a.ID, DeletedBy: "user-1"}))

	_, err = h.svc.End(ctx, EndParams{ID: a.ID, NoShow: nullable.NewNullableWithValue(true)})
	assert.ErrorIs(t, err, ErrAppointmentIDNotFound)
}

func TestUpdateNotes_NullRemovesNotes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.schedule(t, "user-1", "member-1", baseTime, time.Hour)

	withNotes, err := h.svc.UpdateNotes(ctx, UpdateNotesParams{
		AppointmentID: a.ID,
		Notes:         nullable.NewNullableWithValue(NotesInput{Recap: "first"}),
	})
	require.NoError(t, err)
	require.NotNil(t, withNotes.Notes)

	removed, err := h.svc.UpdateNotes(ctx, UpdateNotesParams{
		AppointmentID: a.ID,
		Notes:         nullable.NewNullNullable[NotesInput](),
	})
	require.NoError(t, err)
	assert.Nil(t, removed.Notes)
	assert.Equal(t, 2, h.rec.count(events.TypeUpdatedAppointmentScores))

	var count int64
	require.NoError(t, h.db.Unscoped().Model(&models.Notes{}).Where("appointment_id = ?", a.ID).Count(&count).Error)
	assert.Zero(t, count)

	_, err = h.svc.UpdateNotes(ctx, UpdateNotesParams{AppointmentID: a.ID})
	assert.Error(t, err)
}

func TestDelete_SoftThenHard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.schedule(t, "user-1", "member-1", baseTime, time.Hour)
	_, err := h.svc.UpdateNotes(ctx, UpdateNotesParams{
		AppointmentID: a.ID,
		Notes:         nullable.NewNullableWithValue(NotesInput{Recap: "recap"}),
	})
	require.NoError(t, err)

	require.NoError(t, h.svc.Delete(ctx, DeleteParams{ID: a.ID, DeletedBy: "admin-1"}))

	_, err = h.svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrAppointmentIDNotFound)

	audited, err := h.svc.GetIncludingDeleted(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, audited.Deleted)
	require.NotNil(t, audited.DeletedBy)
	assert.Equal(t, "admin-1", *audited.DeletedBy)
	require.NotNil(t, audited.Notes)
	assert.True(t, audited.Notes.DeletedAt.Valid)

	assert.ErrorIs(t, h.svc.Delete(ctx, DeleteParams{ID: a.ID, DeletedBy: "admin-1"}), ErrAppointmentIDNotFound)
	require.NoError(t, h.svc.Delete(ctx, DeleteParams{ID: a.ID, DeletedBy: "admin-1", Hard: true}))

	_, err = h.svc.GetIncludingDeleted(ctx, a.ID)
	assert.ErrorIs(t, err, ErrAppointmentIDNotFound)
	assert.Equal(t, 2, h.rec.count(events.TypeDeletedAppointment))
}

func TestDeleteMemberAppointments(t *testing.T) {
	for _, hard := range []bool{false, true} {
		name := "soft"
		if hard {
			name = "hard"
		}
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()

			a := h.schedule(t, "user-1", "member-1", baseTime, time.Hour)
			b := h.schedule(t, "user-2", "member-1", baseTime.Add(2*time.Hour), time.Hour)
			h.schedule(t, "user-1", "member-2", baseTime.Add(4*time.Hour), time.Hour)
			for _, id := range []string{a.ID, b.ID} {
				_, err := h.svc.UpdateNotes(ctx, UpdateNotesParams{
					AppointmentID: id,
					Notes:         nullable.NewNullableWithValue(NotesInput{Recap: "r"}),
				})
				require.NoError(t, err)
			}

			ids, err := h.svc.DeleteMemberAppointments(ctx, DeleteMemberParams{MemberID: "member-1", DeletedBy: "admin-1", Hard: hard})
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

			live, err := h.svc.ListByMember(ctx, "member-1", false)
			require.NoError(t, err)
			assert.Empty(t, live)

			all, err := h.svc.ListByMember(ctx, "member-1", true)
			require.NoError(t, err)

			var notes []models.Notes
			require.NoError(t, h.db.Unscoped().Where("appointment_id IN ?", []string{a.ID, b.ID}).Find(&notes).Error)

			if hard {
				assert.Empty(t, all)
				assert.Empty(t, notes)
				return
			}
			require.Len(t, all, 2)
			for _, appt := range all {
				assert.True(t, appt.Deleted)
				require.NotNil(t, appt.DeletedBy)
				assert.Equal(t, "admin-1", *appt.DeletedBy)
			}
			require.Len(t, notes, 2)
			for _, n := range notes {
				assert.True(t, n.DeletedAt.Valid)
				require.NotNil(t, n.DeletedBy)
			}

			other, err := h.svc.ListByMember(ctx, "member-2", false)
			require.NoError(t, err)
			assert.Len(t, other, 1)
		})
	}
}

func TestGetFutureAppointments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	later := h.schedule(t, "user-1", "member-1", baseTime.Add(48*time.Hour), time.Hour)
	sooner := h.schedule(t, "user-1", "member-1", baseTime.Add(24*time.Hour), time.Hour)
	h.schedule(t, "user-1", "member-1", baseTime.Add(-24*time.Hour), time.Hour)
	done := h.schedule(t, "user-1", "member-1", baseTime.Add(72*time.Hour), time.Hour)
	_, err := h.svc.End(ctx, EndParams{ID: done.ID})
	require.NoError(t, err)
	h.schedule(t, "user-1", "member-2", baseTime.Add(96*time.Hour), time.Hour)
	_, err = h.svc.Request(ctx, RequestParams{MemberID: "member-1", UserID: "user-1", NotBefore: baseTime.Add(time.Hour)})
	require.NoError(t, err)

	list, err := h.svc.GetFutureAppointments(ctx, FutureFilter{UserID: "user-1", MemberID: "member-1"})
	require.NoError(t, err)

	require.Len(t, list, 2)
	assert.Equal(t, sooner.ID, list[0].ID)
	assert.Equal(t, later.ID, list[1].ID)
}

func TestMemberAlerts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	member := models.Member{ID: "member-1", PrimaryUserID: "user-1"}

	overdueEnd := baseTime.Add(-48 * time.Hour)
	overdue := h.schedule(t, "user-1", "member-1", overdueEnd.Add(-time.Hour), time.Hour)
	// ended 2h ago: still within the submit window
	h.schedule(t, "user-1", "member-1", baseTime.Add(-3*time.Hour), time.Hour)
	submitted := h.schedule(t, "user-1", "member-1", baseTime.Add(-96*time.Hour), time.Hour)
	_, err := h.svc.End(ctx, EndParams{ID: submitted.ID})
	require.NoError(t, err)

	rec, err := h.svc.AddRecording(ctx, RecordingParams{AppointmentID: submitted.ID})
	require.NoError(t, err)
	_, err = h.svc.AddRecording(ctx, RecordingParams{AppointmentID: submitted.ID})
	require.NoError(t, err)

	h.now = baseTime.Add(-time.Hour)
	reviewed, err := h.svc.ReviewRecording(ctx, ReviewParams{RecordingID: rec.ID, UserID: "user-2", Content: "great session"})
	require.NoError(t, err)
	h.now = baseTime

	alerts, err := h.svc.MemberAlerts(ctx, member)
	require.NoError(t, err)

	require.Len(t, alerts, 2)
	assert.Equal(t, rec.ID+"_appointmentReviewed", alerts[0].ID)
	assert.Equal(t, "member-1", alerts[0].MemberID)
	assert.Equal(t, models.AlertTypeAppointmentReviewed, alerts[0].Type)
	assert.True(t, alerts[0].Date.Equal(reviewed.Review.CreatedAt))
	assert.Equal(t, overdue.ID+"_appointmentSubmitOverdue", alerts[1].ID)
	assert.Equal(t, models.AlertTypeAppointmentSubmitOverdue, alerts[1].Type)
	assert.True(t, alerts[1].Date.Equal(overdueEnd.Add(24*time.Hour)))
}
