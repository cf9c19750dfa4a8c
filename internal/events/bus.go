// Package events is the in-process domain event bus. Emission is synchronous:
// every handler registered for the event type runs, in registration order,
// before Emit returns.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Handler reacts to one event. Returned errors are logged, never propagated.
type Handler func(ctx context.Context, e Event) error

type subscription struct {
	name    string
	handler Handler
}

type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]subscription
	logger   *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[Type][]subscription),
		logger:   logger,
	}
}

// On registers h for events of type t. name only shows up in logs.
func (b *Bus) On(t Type, name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], subscription{name: name, handler: h})
}

// Subscribe registers a handler typed on the concrete event struct.
func Subscribe[T Event](b *Bus, name string, h func(ctx context.Context, e T) error) {
	var zero T
	b.On(zero.EventType(), name, func(ctx context.Context, e Event) error {
		typed, ok := e.(T)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", e, zero.EventType())
		}
		return h(ctx, typed)
	})
}

// Emit runs every handler for e's type and returns once all have finished.
func (b *Bus) Emit(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[e.EventType()]))
	copy(subs, b.handlers[e.EventType()])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.run(ctx, sub, e)
	}
}

func (b *Bus) run(ctx context.Context, sub subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				"event", e.EventType(),
				"handler", sub.name,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if err := sub.handler(ctx, e); err != nil {
		b.logger.Error("Event handler failed",
			"event", e.EventType(),
			"handler", sub.name,
			"error", err.Error(),
		)
	}
}
