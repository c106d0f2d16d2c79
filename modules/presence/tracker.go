// Package presence keeps the online/offline state of users and tells their
// contacts when it changes.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"

	userdomain "github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/dispatch"
)

// State is a user's presence state.
type State string

const (
	StateOffline State = "offline"
	StateOnline  State = "online"
)

// Store persists presence and resolves who shares a chat with a user.
type Store interface {
	SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error
	CoMemberIDs(ctx context.Context, userID string) ([]string, error)
}

// Publisher delivers events to a channel.
type Publisher interface {
	Publish(channel, event string, payload any) error
}

// Tracker runs the per-user offline/online state machine. The caller
// serializes transitions for the same user; Tracker ignores a transition
// into the state the user is already in.
type Tracker struct {
	store     Store
	publisher Publisher
	now       func() time.Time

	mu     sync.Mutex
	online map[string]bool

	logger types.Logger
}

// New creates a Tracker.
func New(store Store, publisher Publisher, logger types.Logger) *Tracker {
	return &Tracker{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		online:    make(map[string]bool),
		logger:    logger,
	}
}

// Online moves userID to online, persists it and notifies the user's contacts.
func (t *Tracker) Online(ctx context.Context, userID string) {
	t.transition(ctx, userID, true)
}

// Offline moves userID to offline, persists it and notifies the user's contacts.
func (t *Tracker) Offline(ctx context.Context, userID string) {
	t.transition(ctx, userID, false)
}

func (t *Tracker) transition(ctx context.Context, userID string, online bool) {
	t.mu.Lock()
	if t.online[userID] == online {
		t.mu.Unlock()
		return
	}
	if online {
		t.online[userID] = true
	} else {
		delete(t.online, userID)
	}
	t.mu.Unlock()

	lastSeen := t.now()
	if err := t.store.SetPresence(ctx, userID, online, lastSeen); err != nil {
		t.logger.Error("Failed to persist presence", "userID", userID, "online", online, "error", err)
	}

	contacts, err := t.store.CoMemberIDs(ctx, userID)
	if err != nil {
		t.logger.Error("Failed to resolve presence contacts", "userID", userID, "error", err)
		return
	}

	payload := userdomain.Presence{
		UserID:   userID,
		IsOnline: online,
		LastSeen: lastSeen,
	}
	for _, contact := range contacts {
		if err := t.publisher.Publish(dispatch.UserChannel(contact), events.WSUserPresence, payload); err != nil {
			t.logger.Error("Failed to publish presence", "userID", userID, "contact", contact, "error", err)
		}
	}
	t.logger.Debug("Presence changed", "userID", userID, "online", online, "contacts", len(contacts))
}

// State returns the in-memory state of userID.
func (t *Tracker) State(userID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.online[userID] {
		return StateOnline
	}
	return StateOffline
}

// OnlineCount returns how many users are online.
func (t *Tracker) OnlineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.online)
}
