package membership

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/realtime-chat/modules/store/storetest"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

type fakeLookup struct {
	members map[string]bool
	err     error
	calls   atomic.Int64
}

func (f *fakeLookup) IsMember(_ context.Context, userID, chatID string) (bool, error) {
	f.calls.Add(1)
	if f.err != nil {
		return false, f.err
	}
	return f.members[chatID+"|"+userID], nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]bool
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]bool)}
}

func (c *memoryCache) Get(_ context.Context, userID, chatID string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, false, c.getErr
	}
	v, ok := c.entries[chatID+"|"+userID]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, userID, chatID string, member bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[chatID+"|"+userID] = member
	return nil
}

func (c *memoryCache) InvalidateChat(_ context.Context, chatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) > len(chatID) && k[:len(chatID)] == chatID {
			delete(c.entries, k)
		}
	}
	return nil
}

func TestOracle_IsMember_FailsClosed(t *testing.T) {
	chatID := uuid.New().String()
	lookup := &fakeLookup{members: map[string]bool{chatID + "|alice": true}}
	oracle := NewOracle(lookup, nil, &mockLogger{})

	tests := []struct {
		name   string
		userID string
		chatID string
		want   bool
	}{
		{name: "member", userID: "alice", chatID: chatID, want: true},
		{name: "non-member", userID: "bob", chatID: chatID, want: false},
		{name: "empty chat id", userID: "alice", chatID: "", want: false},
		{name: "blank chat id", userID: "alice", chatID: "   ", want: false},
		{name: "malformed chat id", userID: "alice", chatID: "not-a-chat", want: false},
		{name: "empty user id", userID: "", chatID: chatID, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, oracle.IsMember(context.Background(), tt.userID, tt.chatID))
		})
	}

	// Malformed input never reaches the store.
	assert.Equal(t, int64(2), lookup.calls.Load())
}

func TestOracle_IsMember_LookupError(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("database is locked")}
	oracle := NewOracle(lookup, nil, &mockLogger{})

	assert.False(t, oracle.IsMember(context.Background(), "alice", uuid.New().String()))
}

func TestOracle_IsMember_UsesCache(t *testing.T) {
	ctx := context.Background()
	chatID := uuid.New().String()
	lookup := &fakeLookup{members: map[string]bool{chatID + "|alice": true}}
	cache := newMemoryCache()
	oracle := NewOracle(lookup, cache, &mockLogger{})

	require.True(t, oracle.IsMember(ctx, "alice", chatID))
	require.True(t, oracle.IsMember(ctx, "alice", chatID))
	assert.Equal(t, int64(1), lookup.calls.Load(), "second check should be served from cache")

	// A membership change is visible after invalidation.
	lookup.members[chatID+"|alice"] = false
	oracle.Invalidate(ctx, chatID)
	assert.False(t, oracle.IsMember(ctx, "alice", chatID))
	assert.Equal(t, int64(2), lookup.calls.Load())
}

func TestOracle_IsMember_CacheErrorFallsThrough(t *testing.T) {
	chatID := uuid.New().String()
	lookup := &fakeLookup{members: map[string]bool{chatID + "|alice": true}}
	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	oracle := NewOracle(lookup, cache, &mockLogger{})

	assert.True(t, oracle.IsMember(context.Background(), "alice", chatID))
	assert.Equal(t, int64(1), lookup.calls.Load())
}

func TestOracle_IsMember_Store(t *testing.T) {
	s := storetest.New(t)
	chatID := storetest.SeedChat(t, s, false, "alice", "bob")
	oracle := NewOracle(s, nil, &mockLogger{})

	assert.True(t, oracle.IsMember(context.Background(), "bob", chatID))
	assert.False(t, oracle.IsMember(context.Background(), "carol", chatID))
}

func TestValidChatID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{id: uuid.New().String(), want: true},
		{id: "", want: false},
		{id: " ", want: false},
		{id: "lobby", want: false},
		{id: "123e4567-e89b-12d3-a456", want: false},
	}
	for _, tt := range tests {
		if got := ValidChatID(tt.id); got != tt.want {
			t.Errorf("ValidChatID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
