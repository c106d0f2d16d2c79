package membership

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// setupTestCache creates a cache against a local Redis, skipping when none is running.
func setupTestCache(t *testing.T) *RedisCache {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}

	prefix := "test:membership:" + uuid.New().String()[:8] + ":"
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
		client.Close()
	})

	return NewRedisCache(client, prefix, time.Minute)
}

func TestRedisCache_GetSet(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()
	chatID := uuid.New().String()

	_, found, err := cache.Get(ctx, "alice", chatID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() on empty cache should miss")
	}

	if err := cache.Set(ctx, "alice", chatID, true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Set(ctx, "bob", chatID, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	member, found, err := cache.Get(ctx, "alice", chatID)
	if err != nil || !found || !member {
		t.Errorf("Get(alice) = %v, %v, %v, want true, true, nil", member, found, err)
	}
	member, found, err = cache.Get(ctx, "bob", chatID)
	if err != nil || !found || member {
		t.Errorf("Get(bob) = %v, %v, %v, want false, true, nil", member, found, err)
	}

	stats := cache.GetStats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Sets != 2 {
		t.Errorf("GetStats() = %+v, want 2 hits, 1 miss, 2 sets", stats)
	}
}

func TestRedisCache_InvalidateChat(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()
	chatA := uuid.New().String()
	chatB := uuid.New().String()

	for _, user := range []string{"alice", "bob"} {
		if err := cache.Set(ctx, user, chatA, true); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if err := cache.Set(ctx, "alice", chatB, true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := cache.InvalidateChat(ctx, chatA); err != nil {
		t.Fatalf("InvalidateChat() error = %v", err)
	}

	if _, found, _ := cache.Get(ctx, "alice", chatA); found {
		t.Error("entry for invalidated chat should be gone")
	}
	if _, found, _ := cache.Get(ctx, "alice", chatB); !found {
		t.Error("entry for other chat should survive")
	}
}
