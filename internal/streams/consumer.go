package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// recoverInterval is how often Consume retries entries left pending.
	recoverInterval = 30 * time.Second
	// claimMinIdle is how long another consumer's entry must sit unacked
	// before it is taken over.
	claimMinIdle = time.Minute
)

// ReceiptHandler processes one receipt. An error leaves the entry pending.
type ReceiptHandler func(ctx context.Context, r Receipt) error

// ReceiptConsumer reads provider receipts through the hub-workers group.
type ReceiptConsumer struct {
	rdb          *redis.Client
	groupName    string
	consumerName string
	logger       *slog.Logger
}

// NewReceiptConsumer creates a new ReceiptConsumer instance
func NewReceiptConsumer(ctx context.Context, redisURL, consumerName string, logger *slog.Logger) (*ReceiptConsumer, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	// Read timeout must exceed the XReadGroup Block duration (5s)
	// to avoid spurious i/o timeout errors on idle streams.
	opts.ReadTimeout = 10 * time.Second

	return NewReceiptConsumerWithClient(ctx, redis.NewClient(opts), consumerName, logger)
}

// NewReceiptConsumerWithClient creates the consumer group on the receipts
// stream if needed and returns a consumer bound to rdb.
func NewReceiptConsumerWithClient(ctx context.Context, rdb *redis.Client, consumerName string, logger *slog.Logger) (*ReceiptConsumer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Start ID "0" means read from beginning if group is new
	err := rdb.XGroupCreateMkStream(ctx, StreamReceipts, GroupHubWorkers, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &ReceiptConsumer{
		rdb:          rdb,
		groupName:    GroupHubWorkers,
		consumerName: consumerName,
		logger:       logger,
	}, nil
}

// Consume runs a blocking loop until ctx is cancelled. Entries whose handler
// failed are retried on start and every recoverInterval.
func (c *ReceiptConsumer) Consume(ctx context.Context, handler ReceiptHandler) error {
	c.recoverPending(ctx, handler)
	lastRecover := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if time.Since(lastRecover) >= recoverInterval {
			c.recoverPending(ctx, handler)
			lastRecover = time.Now()
		}

		if _, err := c.poll(ctx, 5*time.Second, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("Failed to read from stream", "stream", StreamReceipts, "error", err)
		}
	}
}

// poll reads one batch and returns how many entries were acknowledged. A
// negative block reads without waiting.
func (c *ReceiptConsumer) poll(ctx context.Context, block time.Duration, handler ReceiptHandler) (int, error) {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.groupName,
		Consumer: c.consumerName,
		Streams:  []string{StreamReceipts, ">"},
		Count:    10,
		Block:    block,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		// Blocking reads time out when the stream stays idle.
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, nil
		}
		return 0, err
	}

	return c.handleStreams(ctx, streams, handler), nil
}

func (c *ReceiptConsumer) recoverPending(ctx context.Context, handler ReceiptHandler) {
	if n, err := c.retryPending(ctx, handler); err != nil {
		c.logger.Error("Failed to retry pending receipts", "error", err)
	} else if n > 0 {
		c.logger.Info("Retried pending receipts", "acked", n)
	}
	if n, err := c.claimStale(ctx, claimMinIdle, handler); err != nil {
		c.logger.Error("Failed to claim stale receipts", "error", err)
	} else if n > 0 {
		c.logger.Info("Claimed stale receipts", "acked", n)
	}
}

// retryPending re-reads entries delivered to this consumer but never acked.
// ID "0" returns the consumer's own pending list instead of new entries.
func (c *ReceiptConsumer) retryPending(ctx context.Context, handler ReceiptHandler) (int, error) {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.groupName,
		Consumer: c.consumerName,
		Streams:  []string{StreamReceipts, "0"},
		Count:    100,
		Block:    -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.handleStreams(ctx, streams, handler), nil
}

// claimStale takes over entries another consumer left unacked for at least
// minIdle and processes them.
func (c *ReceiptConsumer) claimStale(ctx context.Context, minIdle time.Duration, handler ReceiptHandler) (int, error) {
	messages, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamReceipts,
		Group:    c.groupName,
		Consumer: c.consumerName,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    100,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, message := range messages {
		if c.handle(ctx, message, handler) {
			acked++
		}
	}
	return acked, nil
}

func (c *ReceiptConsumer) handleStreams(ctx context.Context, streams []redis.XStream, handler ReceiptHandler) int {
	acked := 0
	for _, stream := range streams {
		for _, message := range stream.Messages {
			if c.handle(ctx, message, handler) {
				acked++
			}
		}
	}
	return acked
}

func (c *ReceiptConsumer) handle(ctx context.Context, message redis.XMessage, handler ReceiptHandler) bool {
	payloadStr, ok := message.Values["payload"].(string)
	if !ok {
		// malformed entries never parse; drop them so they are not retried
		c.logger.Error("Invalid message payload, dropping", "message_id", message.ID)
		return c.ack(ctx, message.ID)
	}

	var receipt Receipt
	if err := json.Unmarshal([]byte(payloadStr), &receipt); err != nil {
		c.logger.Error("Failed to unmarshal receipt, dropping", "error", err, "message_id", message.ID)
		return c.ack(ctx, message.ID)
	}

	if err := handler(ctx, receipt); err != nil {
		// left pending; retried by recoverPending
		c.logger.Error("Receipt handler failed", "error", err, "dispatch_id", receipt.DispatchID)
		return false
	}

	return c.ack(ctx, message.ID)
}

func (c *ReceiptConsumer) ack(ctx context.Context, messageID string) bool {
	if err := c.rdb.XAck(ctx, StreamReceipts, c.groupName, messageID).Err(); err != nil {
		c.logger.Error("Failed to ACK message", "error", err, "message_id", messageID)
		return false
	}
	return true
}

// Close closes the Redis client connection
func (c *ReceiptConsumer) Close() error {
	return c.rdb.Close()
}

// StartReceiptConsumer runs the consumer in a background goroutine and
// returns a stop function.
func StartReceiptConsumer(redisURL string, marker ReceiptMarker, logger *slog.Logger) (stop func(), err error) {
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := NewReceiptConsumer(ctx, redisURL, consumerName(), logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create receipt consumer: %w", err)
	}

	go func() {
		if err := consumer.Consume(ctx, HandleReceipt(marker, consumer.logger)); err != nil && !errors.Is(err, context.Canceled) {
			consumer.logger.Error("Receipt consumer stopped with error", "error", err)
		}
	}()

	consumer.logger.Info("Receipt consumer started", "stream", StreamReceipts, "group", GroupHubWorkers)

	return func() {
		cancel()
		consumer.Close()
	}, nil
}

// consumerName is unique per process so each instance owns its pending list.
func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "hub"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
