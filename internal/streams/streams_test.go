package streams

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/carecircle/hub/internal/dispatch"
	"github.com/carecircle/hub/internal/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestPublisher_PublishNotification(t *testing.T) {
	rdb := newRedis(t)
	pub := NewPublisherWithClient(rdb)
	ctx := context.Background()

	id, err := pub.PublishNotification(ctx, NotificationMessage{
		DispatchID: "appointmentReminder_m-1_a-1",
		ContentKey: "appointmentReminder",
		Body:       "soon",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := rdb.XRange(ctx, StreamNotifications, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	values := entries[0].Values
	assert.Equal(t, TypeNotifications, values["type"])
	assert.Equal(t, SchemaVersionV1, values["schema_version"])
	assert.NotEmpty(t, values["published_at"])

	var msg NotificationMessage
	require.NoError(t, json.Unmarshal([]byte(values["payload"].(string)), &msg))
	assert.Equal(t, "appointmentReminder_m-1_a-1", msg.DispatchID)
}

func TestForwarder_PublishesMemberAndUserEvents(t *testing.T) {
	rdb := newRedis(t)
	bus := events.NewBus(nil)
	RegisterForwarder(bus, NewPublisherWithClient(rdb))
	ctx := context.Background()

	bus.Emit(ctx, events.DeleteMember{MemberID: "m-1", DeletedBy: "u-1"})
	bus.Emit(ctx, events.UpdatedUser{UserID: "u-1", Name: "Coach"})
	bus.Emit(ctx, events.NewAppointment{AppointmentID: "a-1"})

	entries, err := rdb.XRange(ctx, StreamEvents, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, string(events.TypeDeleteMember), entries[0].Values["type"])
	assert.Equal(t, string(events.TypeUpdatedUser), entries[1].Values["type"])

	var deleted events.DeleteMember
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &deleted))
	assert.Equal(t, "m-1", deleted.MemberID)
}

func addReceipt(t *testing.T, rdb *redis.Client, r Receipt) {
	t.Helper()
	payload, err := json.Marshal(r)
	require.NoError(t, err)
	require.NoError(t, rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: StreamReceipts,
		Values: map[string]interface{}{"payload": string(payload)},
	}).Err())
}

func TestReceiptConsumer_AcksOnlyHandled(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()

	consumer, err := NewReceiptConsumerWithClient(ctx, rdb, "test-consumer", nil)
	require.NoError(t, err)
	// group creation is idempotent
	_, err = NewReceiptConsumerWithClient(ctx, rdb, "test-consumer", nil)
	require.NoError(t, err)

	addReceipt(t, rdb, Receipt{DispatchID: "ok", Status: ReceiptDelivered})
	addReceipt(t, rdb, Receipt{DispatchID: "boom", Status: ReceiptDelivered})

	var seen []string
	acked, err := consumer.poll(ctx, -1, func(_ context.Context, r Receipt) error {
		seen = append(seen, r.DispatchID)
		if r.DispatchID == "boom" {
			return errors.New("database down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, acked)
	assert.Equal(t, []string{"ok", "boom"}, seen)

	pending, err := rdb.XPending(ctx, StreamReceipts, GroupHubWorkers).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending.Count)

	acked, err = consumer.poll(ctx, -1, func(context.Context, Receipt) error { return nil })
	require.NoError(t, err)
	assert.Zero(t, acked, "new reads skip entries already delivered to the group")
}

func TestReceiptConsumer_RetriesFailedReceipt(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	consumer, err := NewReceiptConsumerWithClient(ctx, rdb, "test-consumer", nil)
	require.NoError(t, err)

	marker := &fakeMarker{delivered: map[string]time.Time{}, failed: map[string]string{}}
	handle := HandleReceipt(marker, nil)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	addReceipt(t, rdb, Receipt{DispatchID: "d-1", Status: ReceiptDelivered, DeliveredAt: at})

	marker.err = errors.New("database down")
	acked, err := consumer.poll(ctx, -1, handle)
	require.NoError(t, err)
	assert.Zero(t, acked)

	marker.err = nil
	acked, err = consumer.retryPending(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, 1, acked)
	assert.True(t, marker.delivered["d-1"].Equal(at))

	pending, err := rdb.XPending(ctx, StreamReceipts, GroupHubWorkers).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)

	acked, err = consumer.retryPending(ctx, handle)
	require.NoError(t, err)
	assert.Zero(t, acked)
}

func TestReceiptConsumer_ClaimsStaleEntries(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	gone, err := NewReceiptConsumerWithClient(ctx, rdb, "gone", nil)
	require.NoError(t, err)
	survivor, err := NewReceiptConsumerWithClient(ctx, rdb, "survivor", nil)
	require.NoError(t, err)

	addReceipt(t, rdb, Receipt{DispatchID: "d-1", Status: ReceiptFailed, Error: "unreachable"})
	_, err = gone.poll(ctx, -1, func(context.Context, Receipt) error { return errors.New("crashed") })
	require.NoError(t, err)

	var seen []string
	acked, err := survivor.claimStale(ctx, 0, func(_ context.Context, r Receipt) error {
		seen = append(seen, r.DispatchID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, acked)
	assert.Equal(t, []string{"d-1"}, seen)
}

func TestReceiptConsumer_DropsMalformedEntries(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	consumer, err := NewReceiptConsumerWithClient(ctx, rdb, "test-consumer", nil)
	require.NoError(t, err)

	require.NoError(t, rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamReceipts,
		Values: map[string]interface{}{"payload": "{not json"},
	}).Err())

	acked, err := consumer.poll(ctx, -1, func(context.Context, Receipt) error {
		t.Fatal("handler must not see malformed entries")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, acked)

	pending, err := rdb.XPending(ctx, StreamReceipts, GroupHubWorkers).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

type fakeMarker struct {
	delivered map[string]time.Time
	failed    map[string]string
	err       error
}

func (f *fakeMarker) MarkDelivered(_ context.Context, id string, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.delivered[id] = at
	return nil
}

func (f *fakeMarker) MarkFailed(_ context.Context, id, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.failed[id] = reason
	return nil
}

func TestHandleReceipt(t *testing.T) {
	marker := &fakeMarker{delivered: map[string]time.Time{}, failed: map[string]string{}}
	handle := HandleReceipt(marker, nil)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, handle(ctx, Receipt{DispatchID: "d-1", Status: ReceiptDelivered, DeliveredAt: at}))
	require.NoError(t, handle(ctx, Receipt{DispatchID: "d-2", Status: ReceiptFailed, Error: "unreachable"}))
	assert.Error(t, handle(ctx, Receipt{DispatchID: "d-3", Status: "lost"}))

	assert.True(t, marker.delivered["d-1"].Equal(at))
	assert.Equal(t, "unreachable", marker.failed["d-2"])

	marker.err = dispatch.ErrDispatchNotFound
	assert.NoError(t, handle(ctx, Receipt{DispatchID: "gone", Status: ReceiptDelivered}))

	marker.err = errors.New("database down")
	assert.Error(t, handle(ctx, Receipt{DispatchID: "d-4", Status: ReceiptDelivered}))
}
