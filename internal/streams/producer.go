package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carecircle/hub/internal/events"
	"github.com/redis/go-redis/v9"
)

// Publisher appends messages to Redis Streams for out-of-process consumers.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a new Publisher instance
func NewPublisher(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewPublisherWithClient(redis.NewClient(opts)), nil
}

func NewPublisherWithClient(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// PublishNotification appends msg to the notifications stream.
func (p *Publisher) PublishNotification(ctx context.Context, msg NotificationMessage) (string, error) {
	return p.publish(ctx, StreamNotifications, TypeNotifications, msg)
}

// PublishEvent forwards a domain event to the events stream.
func (p *Publisher) PublishEvent(ctx context.Context, e events.Event) (string, error) {
	return p.publish(ctx, StreamEvents, string(e.EventType()), e)
}

func (p *Publisher) publish(ctx context.Context, stream, msgType string, v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s message: %w", msgType, err)
	}

	result := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"type":           msgType,
			"payload":        string(payload),
			"published_at":   time.Now().Unix(),
			"schema_version": SchemaVersionV1,
		},
	})

	if result.Err() != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", stream, result.Err())
	}

	return result.Val(), nil
}

// Close closes the Redis client connection
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
