package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestTokenBucket_Allow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	l := NewTokenBucket(Config{Limit: 3, Window: time.Second})
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "conn-1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !ok {
			t.Errorf("event %d should be allowed", i+1)
		}
	}

	if ok, _ := l.Allow(ctx, "conn-1"); ok {
		t.Error("4th event should be denied")
	}
	if ok, _ := l.Allow(ctx, "conn-2"); !ok {
		t.Error("other keys have their own bucket")
	}

	// Half a window refills one and a half tokens.
	now = now.Add(time.Second / 2)
	if ok, _ := l.Allow(ctx, "conn-1"); !ok {
		t.Error("event after partial refill should be allowed")
	}
	if ok, _ := l.Allow(ctx, "conn-1"); ok {
		t.Error("bucket should be empty again")
	}

	// A long pause never overfills the bucket.
	now = now.Add(time.Hour)
	allowed := 0
	for i := 0; i < 10; i++ {
		if ok, _ := l.Allow(ctx, "conn-1"); ok {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("allowed after refill = %d, want %d", allowed, 3)
	}
}

func TestTokenBucket_Forget(t *testing.T) {
	l := NewTokenBucket(Config{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	l.Allow(ctx, "conn-1")
	if ok, _ := l.Allow(ctx, "conn-1"); ok {
		t.Fatal("second event should be denied")
	}

	l.Forget("conn-1")
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
	if ok, _ := l.Allow(ctx, "conn-1"); !ok {
		t.Error("a forgotten key starts with a full bucket")
	}
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{"zero", Config{}, DefaultConfig()},
		{"keeps values", Config{Limit: 5, Window: time.Minute}, Config{Limit: 5, Window: time.Minute}},
		{"negative limit", Config{Limit: -1, Window: time.Minute}, Config{Limit: 20, Window: time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.normalize(); got != tt.want {
				t.Errorf("normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRedisLimiter_Allow(t *testing.T) {
	// Skip if Redis is not available
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}

	l := NewRedisLimiter(client, Config{Limit: 3, Window: time.Minute}, "test:ratelimit:ws:")
	defer l.Forget(ctx, "conn-1")
	defer l.Forget(ctx, "conn-2")

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "conn-1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !ok {
			t.Errorf("event %d should be allowed", i+1)
		}
	}

	ok, err := l.Allow(ctx, "conn-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if ok {
		t.Error("4th event should be denied")
	}

	if ok, _ := l.Allow(ctx, "conn-2"); !ok {
		t.Error("other keys have their own window")
	}
}
