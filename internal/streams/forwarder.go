package streams

import (
	"context"

	"github.com/carecircle/hub/internal/events"
)

// RegisterForwarder copies member deletions and user updates onto the events
// stream, where chat naming and auth toggles pick them up.
func RegisterForwarder(bus *events.Bus, pub *Publisher) {
	events.Subscribe(bus, "streams.forward", func(ctx context.Context, e events.DeleteMember) error {
		_, err := pub.PublishEvent(ctx, e)
		return err
	})
	events.Subscribe(bus, "streams.forward", func(ctx context.Context, e events.UpdatedUser) error {
		_, err := pub.PublishEvent(ctx, e)
		return err
	})
}
