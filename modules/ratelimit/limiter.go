// Package ratelimit throttles inbound websocket events per connection.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more event for key is allowed right now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config describes a rate of Limit events per Window.
type Config struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig allows 20 events per second.
func DefaultConfig() Config {
	return Config{
		Limit:  20,
		Window: time.Second,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.Limit <= 0 {
		c.Limit = def.Limit
	}
	if c.Window <= 0 {
		c.Window = def.Window
	}
	return c
}

// TokenBucket is an in-memory limiter with one rate.Limiter per key. A
// bucket holds up to Limit tokens and refills Limit tokens every Window.
type TokenBucket struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewTokenBucket creates an in-memory token bucket limiter.
func NewTokenBucket(config Config) *TokenBucket {
	config = config.normalize()
	return &TokenBucket{
		limit:   rate.Limit(float64(config.Limit) / config.Window.Seconds()),
		burst:   config.Limit,
		now:     time.Now,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow takes one token from key's bucket.
func (l *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.AllowN(l.now(), 1), nil
}

// Forget drops the bucket of key, typically when its connection closes.
func (l *TokenBucket) Forget(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Len returns the number of tracked keys.
func (l *TokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
