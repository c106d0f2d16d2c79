package membership

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps membership answers in Redis under prefix+chatID+":"+userID.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  *Stats
}

// Stats tracks cache statistics.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Sets    uint64 `json:"sets"`
	Deletes uint64 `json:"deletes"`
	Errors  uint64 `json:"errors"`
}

// NewRedisCache creates a membership cache.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		stats:  &Stats{},
	}
}

func (c *RedisCache) key(chatID, userID string) string {
	return c.prefix + chatID + ":" + userID
}

// Get returns the cached answer. found is false on a miss.
func (c *RedisCache) Get(ctx context.Context, userID, chatID string) (bool, bool, error) {
	val, err := c.client.Get(ctx, c.key(chatID, userID)).Result()
	if err != nil {
		if err == redis.Nil {
			atomic.AddUint64(&c.stats.Misses, 1)
			return false, false, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
		return false, false, fmt.Errorf("cache get error: %w", err)
	}
	atomic.AddUint64(&c.stats.Hits, 1)
	return val == "1", true, nil
}

// Set stores an answer with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, userID, chatID string, member bool) error {
	val := "0"
	if member {
		val = "1"
	}
	if err := c.client.Set(ctx, c.key(chatID, userID), val, c.ttl).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache set error: %w", err)
	}
	atomic.AddUint64(&c.stats.Sets, 1)
	return nil
}

// InvalidateChat removes every cached answer for chatID.
func (c *RedisCache) InvalidateChat(ctx context.Context, chatID string) error {
	pattern := c.prefix + chatID + ":*"

	var cursor uint64
	var deleted int
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			atomic.AddUint64(&c.stats.Errors, 1)
			return fmt.Errorf("cache scan error: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				atomic.AddUint64(&c.stats.Errors, 1)
				return fmt.Errorf("cache delete error: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	atomic.AddUint64(&c.stats.Deletes, uint64(deleted))
	return nil
}

// GetStats returns a snapshot of the counters.
func (c *RedisCache) GetStats() Stats {
	return Stats{
		Hits:    atomic.LoadUint64(&c.stats.Hits),
		Misses:  atomic.LoadUint64(&c.stats.Misses),
		Sets:    atomic.LoadUint64(&c.stats.Sets),
		Deletes: atomic.LoadUint64(&c.stats.Deletes),
		Errors:  atomic.LoadUint64(&c.stats.Errors),
	}
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
