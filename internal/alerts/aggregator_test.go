package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/carecircle/hub/internal/apperrors"
	"github.com/carecircle/hub/internal/models"
	"github.com/carecircle/hub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeDispatches map[string][]models.Dispatch

func (f fakeDispatches) ListBySender(_ context.Context, sender string) ([]models.Dispatch, error) {
	return f[sender], nil
}

type fakeResolver map[string]models.AlertType

func (f fakeResolver) AlertType(key string) (models.AlertType, bool) {
	t, ok := f[key]
	return t, ok
}

type fakeAppointments map[string][]models.Alert

func (f fakeAppointments) MemberAlerts(_ context.Context, m models.Member) ([]models.Alert, error) {
	return f[m.ID], nil
}

type fakeUsers struct {
	user    models.User
	members []models.Member
	seen    []time.Time
}

func (f *fakeUsers) GetUser(context.Context, string) (*models.User, error) {
	u := f.user
	return &u, nil
}

func (f *fakeUsers) ListByUser(context.Context, string) ([]models.Member, error) {
	return f.members, nil
}

func (f *fakeUsers) MarkAlertsSeen(_ context.Context, _ string, at time.Time) error {
	f.seen = append(f.seen, at)
	return nil
}

func at(h int) *time.Time {
	t := baseTime.Add(time.Duration(h) * time.Hour)
	return &t
}

func newFixture(t *testing.T) (*Aggregator, *fakeUsers) {
	t.Helper()
	members := []models.Member{
		{ID: "m-2", PrimaryUserID: "u-1", CreatedAt: baseTime.Add(-48 * time.Hour)},
		{ID: "m-1", PrimaryUserID: "u-1", CreatedAt: baseTime.Add(-72 * time.Hour)},
	}
	dispatches := fakeDispatches{
		"m-2": {
			{DispatchID: "newChatMessageFromMember_u-1_c2", ContentKey: "newChatMessageFromMember", SentAt: at(2)},
			{DispatchID: "memberNotFeelingWellMessage_u-1", ContentKey: "memberNotFeelingWellMessage", SentAt: at(1)},
			{DispatchID: "newChatMessageFromMember_u-1_c3", ContentKey: "newChatMessageFromMember"},
			{DispatchID: "appointmentReminder_m-2", ContentKey: "appointmentReminder", SentAt: at(0)},
		},
	}
	resolver := fakeResolver{
		"newChatMessageFromMember":    models.AlertTypeNewChatMessageFromMember,
		"memberNotFeelingWellMessage": models.AlertTypeMemberNotFeelingWellMessage,
	}
	appts := fakeAppointments{
		"m-1": {{ID: "rec-1_appointmentReviewed", MemberID: "m-1", Type: models.AlertTypeAppointmentReviewed, Date: *at(-1)}},
	}
	users := &fakeUsers{user: models.User{ID: "u-1"}, members: members}

	return NewAggregator(NewStore(testutil.NewDB(t)), dispatches, resolver, appts, users, nil), users
}

func ids(alerts []models.Alert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.ID)
	}
	return out
}

func TestGetAlerts_Ordering(t *testing.T) {
	agg, users := newFixture(t)

	alerts, err := agg.GetAlerts(context.Background(), "u-1", users.members, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"m-2_memberAssigned",
		"memberNotFeelingWellMessage_u-1_memberNotFeelingWellMessage",
		"newChatMessageFromMember_u-1_c2_newChatMessageFromMember",
		"m-1_memberAssigned",
		"rec-1_appointmentReviewed",
	}, ids(alerts))

	for _, a := range alerts {
		assert.True(t, a.IsNew, "no watermark means everything is new")
		assert.False(t, a.Dismissed)
	}
	assert.True(t, alerts[1].Date.Equal(*at(1)))
}

func TestGetAlerts_WatermarkAndDismissals(t *testing.T) {
	agg, users := newFixture(t)
	ctx := context.Background()

	require.NoError(t, agg.Dismiss(ctx, "u-1", "m-1_memberAssigned"))
	require.NoError(t, agg.Dismiss(ctx, "u-1", "m-1_memberAssigned"))
	require.NoError(t, agg.Dismiss(ctx, "u-2", "m-2_memberAssigned"))

	alerts, err := agg.GetAlerts(ctx, "u-1", users.members, at(1))
	require.NoError(t, err)

	byID := make(map[string]models.Alert, len(alerts))
	for _, a := range alerts {
		byID[a.ID] = a
	}
	assert.True(t, byID["m-1_memberAssigned"].Dismissed)
	assert.False(t, byID["m-2_memberAssigned"].Dismissed, "dismissals are per user")

	assert.False(t, byID["memberNotFeelingWellMessage_u-1_memberNotFeelingWellMessage"].IsNew, "dated exactly at the watermark")
	assert.True(t, byID["newChatMessageFromMember_u-1_c2_newChatMessageFromMember"].IsNew)
	assert.False(t, byID["rec-1_appointmentReviewed"].IsNew)
}

func TestGetAlerts_NoMembers(t *testing.T) {
	agg, _ := newFixture(t)

	alerts, err := agg.GetAlerts(context.Background(), "u-1", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.NotNil(t, alerts)
}

func TestForUser_UsesStoredWatermark(t *testing.T) {
	agg, users := newFixture(t)
	users.user.LastQueryAlert = at(10)

	alerts, err := agg.ForUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, alerts, 5)
	for _, a := range alerts {
		assert.False(t, a.IsNew)
	}
}

func TestMarkSeenAndDismissValidation(t *testing.T) {
	agg, users := newFixture(t)
	ctx := context.Background()

	require.NoError(t, agg.MarkSeen(ctx, "u-1", baseTime))
	assert.Equal(t, []time.Time{baseTime}, users.seen)

	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(agg.Dismiss(ctx, "u-1", "")))
}
