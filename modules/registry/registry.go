// Package registry tracks live connections, their room subscriptions and the
// per-user connection count that drives presence.
package registry

import (
	"context"
	"sync"

	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/dispatch"
)

// MembershipChecker gates room joins.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID, chatID string) bool
}

// PresenceHook is told when a user gains its first or loses its last
// connection. Calls for one user never overlap.
type PresenceHook interface {
	Online(ctx context.Context, userID string)
	Offline(ctx context.Context, userID string)
}

// Registry owns the connection lifecycle on top of the dispatcher.
type Registry struct {
	dispatcher *dispatch.Dispatcher
	members    MembershipChecker
	presence   PresenceHook
	userLocks  *keyLock

	mu     sync.Mutex
	conns  map[string]*dispatch.Client // connID -> client
	counts map[string]int              // userID -> live connections

	logger types.Logger
}

// New creates a Registry. presence may be nil.
func New(d *dispatch.Dispatcher, members MembershipChecker, presence PresenceHook, logger types.Logger) *Registry {
	return &Registry{
		dispatcher: d,
		members:    members,
		presence:   presence,
		userLocks:  newKeyLock(),
		conns:      make(map[string]*dispatch.Client),
		counts:     make(map[string]int),
		logger:     logger,
	}
}

// OnConnect registers c and subscribes it to its user's personal channel.
// Registering the same connection twice is a no-op. It returns true when c
// is the user's first live connection.
func (r *Registry) OnConnect(ctx context.Context, c *dispatch.Client) bool {
	userID := c.UserID()
	unlock := r.userLocks.Lock(userID)
	defer unlock()

	if !r.dispatcher.Attach(c) {
		return false
	}
	r.dispatcher.Subscribe(c, dispatch.UserChannel(userID))

	r.mu.Lock()
	r.conns[c.ID()] = c
	r.counts[userID]++
	first := r.counts[userID] == 1
	r.mu.Unlock()

	r.logger.Info("Connection registered", "connID", c.ID(), "userID", userID, "first", first)
	if first && r.presence != nil {
		r.presence.Online(ctx, userID)
	}
	return first
}

// JoinRoom subscribes c to the chat's room after a membership check. A
// denied join sends a single error event to c and changes nothing.
func (r *Registry) JoinRoom(ctx context.Context, c *dispatch.Client, chatID string) bool {
	if !r.members.IsMember(ctx, c.UserID(), chatID) {
		r.logger.Warn("Room join denied", "connID", c.ID(), "userID", c.UserID(), "chatID", chatID)
		if err := r.dispatcher.Send(c, events.WSError, events.ReasonNotRoomMember); err != nil {
			r.logger.Error("Failed to send join error", "connID", c.ID(), "error", err)
		}
		return false
	}

	if !r.dispatcher.Subscribe(c, dispatch.ChatChannel(chatID)) {
		// Disconnected while the membership check was running.
		return false
	}
	r.logger.Debug("Room joined", "connID", c.ID(), "userID", c.UserID(), "chatID", chatID)
	return true
}

// LeaveRoom unsubscribes c from the chat's room. Leaving a room that was
// never joined is a no-op.
func (r *Registry) LeaveRoom(c *dispatch.Client, chatID string) {
	r.dispatcher.Unsubscribe(c, dispatch.ChatChannel(chatID))
	r.logger.Debug("Room left", "connID", c.ID(), "userID", c.UserID(), "chatID", chatID)
}

// InRoom reports whether c is subscribed to the chat's room.
func (r *Registry) InRoom(c *dispatch.Client, chatID string) bool {
	return r.dispatcher.Subscribed(c, dispatch.ChatChannel(chatID))
}

// OnDisconnect drops every subscription of c before returning. It returns
// true when c was the user's last live connection.
func (r *Registry) OnDisconnect(ctx context.Context, c *dispatch.Client) bool {
	userID := c.UserID()
	unlock := r.userLocks.Lock(userID)
	defer unlock()

	if !r.dispatcher.Remove(c) {
		return false
	}

	r.mu.Lock()
	delete(r.conns, c.ID())
	r.counts[userID]--
	last := r.counts[userID] <= 0
	if last {
		delete(r.counts, userID)
	}
	r.mu.Unlock()

	r.logger.Info("Connection removed", "connID", c.ID(), "userID", userID, "last", last)
	if last && r.presence != nil {
		r.presence.Offline(ctx, userID)
	}
	return last
}

// CloseAll disconnects every registered connection, running the offline
// transition for each user. It returns the number of connections closed.
func (r *Registry) CloseAll(ctx context.Context) int {
	r.mu.Lock()
	clients := make([]*dispatch.Client, 0, len(r.conns))
	for _, c := range r.conns {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	closed := 0
	for _, c := range clients {
		r.OnDisconnect(ctx, c)
		closed++
	}
	return closed
}

// Connections returns the number of live connections of userID.
func (r *Registry) Connections(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[userID]
}

// ConnectedUsers returns the number of users with at least one connection.
func (r *Registry) ConnectedUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.counts)
}

// ConnectionCount returns the number of live connections.
func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
