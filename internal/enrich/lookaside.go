package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Lookaside is a shared second-level cache consulted before a Source.
// Implementations degrade to a miss on any error.
type Lookaside interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Close() error
}

// NewLookaside returns a Redis-backed lookaside for redisURL, or a NullLookaside
// when redisURL is empty or Redis cannot be reached.
func NewLookaside(redisURL, prefix string, ttl time.Duration, logger *log.Logger) Lookaside {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if redisURL == "" {
		return NullLookaside{}
	}
	rl, err := NewRedisLookaside(redisURL, prefix, ttl, logger)
	if err != nil {
		logger.Printf("Redis lookaside disabled: %v", err)
		return NullLookaside{}
	}
	return rl
}

// NullLookaside never hits
type NullLookaside struct{}

func (NullLookaside) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (NullLookaside) Set(context.Context, string, []byte)        {}
func (NullLookaside) Close() error                               { return nil }

// RedisLookaside stores JSON-encoded entities under prefix+key with a TTL
type RedisLookaside struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *log.Logger
}

func NewRedisLookaside(redisURL, prefix string, ttl time.Duration, logger *log.Logger) (*RedisLookaside, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return newRedisLookaside(client, prefix, ttl, logger), nil
}

func newRedisLookaside(client *redis.Client, prefix string, ttl time.Duration, logger *log.Logger) *RedisLookaside {
	if prefix == "" {
		prefix = "secboard:enrich:"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &RedisLookaside{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (rl *RedisLookaside) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := rl.client.Get(ctx, rl.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			rl.logger.Printf("Redis get error for %s: %v", key, err)
		}
		return nil, false
	}
	return raw, true
}

func (rl *RedisLookaside) Set(ctx context.Context, key string, value []byte) {
	if err := rl.client.Set(ctx, rl.prefix+key, value, rl.ttl).Err(); err != nil {
		rl.logger.Printf("Redis set error for %s: %v", key, err)
	}
}

// Purge deletes every entry under the prefix and returns how many keys were removed.
func (rl *RedisLookaside) Purge(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := rl.client.Scan(ctx, cursor, rl.prefix+"*", 500).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan Redis keys: %w", err)
		}
		if len(keys) > 0 {
			n, err := rl.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to delete Redis keys: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (rl *RedisLookaside) Close() error {
	return rl.client.Close()
}

// CachedSource puts a Lookaside in front of a Source. Only successful fetches are stored.
type CachedSource[T any] struct {
	src    Source[T]
	cache  Lookaside
	logger *log.Logger
}

func NewCachedSource[T any](src Source[T], cache Lookaside, logger *log.Logger) *CachedSource[T] {
	if cache == nil {
		cache = NullLookaside{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &CachedSource[T]{src: src, cache: cache, logger: logger}
}

func (c *CachedSource[T]) Fetch(ctx context.Context, id string) (T, error) {
	if raw, ok := c.cache.Get(ctx, id); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.logger.Printf("Discarding undecodable lookaside entry for %s", id)
	}
	v, err := c.src.Fetch(ctx, id)
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		c.cache.Set(ctx, id, raw)
	}
	return v, nil
}
