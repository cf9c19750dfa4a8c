package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_RunsHandlersInRegistrationOrder(t *testing.T) {
	bus := NewBus(nil)
	var calls []string

	Subscribe(bus, "first", func(ctx context.Context, e NewAppointment) error {
		calls = append(calls, "first:"+e.AppointmentID)
		return nil
	})
	Subscribe(bus, "second", func(ctx context.Context, e NewAppointment) error {
		calls = append(calls, "second:"+e.AppointmentID)
		return nil
	})
	Subscribe(bus, "other", func(ctx context.Context, e DeleteMember) error {
		calls = append(calls, "other")
		return nil
	})

	bus.Emit(context.Background(), NewAppointment{AppointmentID: "a1"})

	assert.Equal(t, []string{"first:a1", "second:a1"}, calls)
}

func TestBus_FailingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus(nil)
	var reached bool

	Subscribe(bus, "fails", func(ctx context.Context, e DeleteMember) error {
		return errors.New("downstream unavailable")
	})
	Subscribe(bus, "panics", func(ctx context.Context, e DeleteMember) error {
		panic("boom")
	})
	Subscribe(bus, "ok", func(ctx context.Context, e DeleteMember) error {
		reached = true
		return nil
	})

	assert.NotPanics(t, func() {
		bus.Emit(context.Background(), DeleteMember{MemberID: "m1"})
	})
	assert.True(t, reached)
}

func TestBus_EmitWithoutSubscribers(t *testing.T) {
	bus := NewBus(nil)
	assert.NotPanics(t, func() {
		bus.Emit(context.Background(), UpdatedUser{UserID: "u1"})
	})
}
