package bus

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Ashfaaq98/secboard/internal/model"
)

// ChangesStream is the Redis stream carrying snapshot changes
const ChangesStream = "secboard:snapshots"

// streamMaxLen bounds the stream; listeners only care about recent entries.
const streamMaxLen = 1000

// RedisBus provides Redis Streams-based change notifications
type RedisBus struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL string, logger *log.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &RedisBus{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

// PublishChange appends a change to the changes stream
func (rb *RedisBus) PublishChange(ctx context.Context, change Change) error {
	if change.Timestamp == 0 {
		change.Timestamp = time.Now().UnixMilli()
	}
	result := rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: ChangesStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: changeFields(change),
	})
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}

	rb.logger.Printf("Published %s %s (%d items)", change.Kind, change.Action, change.Count)
	return nil
}

// WatchChanges reads the changes stream from its current tail. Every watcher
// sees every change, so no consumer group is used.
func (rb *RedisBus) WatchChanges(ctx context.Context, handler func(ctx context.Context, change Change) error) error {
	lastID := "$"
	rb.logger.Printf("Watching %s", ChangesStream)

	for {
		select {
		case <-ctx.Done():
			rb.logger.Printf("Change watcher stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		result := rb.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{ChangesStream, lastID},
			Count:   10,
			Block:   1 * time.Second,
		})
		if err := result.Err(); err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rb.logger.Printf("Error reading from stream %s: %v", ChangesStream, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, stream := range result.Val() {
			for _, message := range stream.Messages {
				lastID = message.ID
				fields := make(map[string]string, len(message.Values))
				for key, value := range message.Values {
					if s, ok := value.(string); ok {
						fields[key] = s
					}
				}
				if err := handler(ctx, changeFromFields(fields)); err != nil {
					rb.logger.Printf("Error processing message %s: %v", message.ID, err)
				}
			}
		}
	}
}

// HealthCheck performs a health check on the Redis connection
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

func changeFields(c Change) map[string]interface{} {
	return map[string]interface{}{
		"kind":      string(c.Kind),
		"action":    c.Action,
		"count":     c.Count,
		"source":    c.Source,
		"timestamp": c.Timestamp,
	}
}

func changeFromFields(fields map[string]string) Change {
	c := Change{
		Kind:   model.Kind(fields["kind"]),
		Action: fields["action"],
		Source: fields["source"],
	}
	if n, err := strconv.Atoi(fields["count"]); err == nil {
		c.Count = n
	}
	c.Timestamp, _ = parseTimestamp(fields["timestamp"])
	return c
}

// parseTimestamp parses a timestamp field to epoch milliseconds
func parseTimestamp(timestamp string) (int64, error) {
	if timestamp == "" {
		return time.Now().UnixMilli(), nil
	}

	// Numeric epoch: 13+ digits are milliseconds, fewer are seconds
	if n, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		if n > 1_000_000_000_000 {
			return n, nil
		}
		return n * 1000, nil
	}

	if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		return ts.UnixMilli(), nil
	}

	return time.Now().UnixMilli(), fmt.Errorf("unable to parse timestamp: %s", timestamp)
}
