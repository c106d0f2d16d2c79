package realtime

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/example/realtime-chat/domain/chat"
	userdomain "github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/dispatch/dispatchtest"
	"github.com/example/realtime-chat/modules/membership"
	"github.com/example/realtime-chat/modules/messaging"
	"github.com/example/realtime-chat/modules/presence"
	"github.com/example/realtime-chat/modules/store"
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

func startModules(t *testing.T) (*Module, *store.Store) {
	t.Helper()
	ctx := context.Background()

	storeModule := store.NewModule(":memory:")
	require.NoError(t, storeModule.Start(ctx))
	t.Cleanup(func() { storeModule.Stop(ctx) })

	membershipModule := membership.NewModule(storeModule, nil, membership.DefaultConfig(), &mockLogger{})
	require.NoError(t, membershipModule.Start(ctx))

	m := NewModule(storeModule, membershipModule, DefaultConfig(), &mockLogger{})
	require.NoError(t, m.Start(ctx))
	t.Cleanup(func() { m.Stop(ctx) })

	return m, storeModule.Store()
}

func frame(event string, data string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"data":%s}`, event, data))
}

func TestModule_StartRequiresDependencies(t *testing.T) {
	storeModule := store.NewModule(":memory:")
	membershipModule := membership.NewModule(storeModule, nil, membership.DefaultConfig(), &mockLogger{})
	m := NewModule(storeModule, membershipModule, Config{}, &mockLogger{})

	assert.Error(t, m.Start(context.Background()))
	assert.False(t, m.Health(context.Background()).Healthy)
}

func TestSession_ConnectAcknowledges(t *testing.T) {
	m, _ := startModules(t)
	rec := &dispatchtest.Recorder{}

	s, err := m.Connect(context.Background(), "conn-1", "alice", rec)
	require.NoError(t, err)
	assert.Equal(t, "conn-1", s.ID())
	assert.Equal(t, "alice", s.UserID())

	rec.WaitFor(t, events.WSConnected, 1)
	var ack ConnectedPayload
	rec.Decode(t, events.WSConnected, 0, &ack)
	assert.Equal(t, ConnectedPayload{ConnectionID: "conn-1", UserID: "alice"}, ack)
	assert.Equal(t, presence.StateOnline, m.Tracker().State("alice"))

	s.Close(context.Background())
	assert.Equal(t, presence.StateOffline, m.Tracker().State("alice"))
}

func TestSession_HandleRejectsBadFrames(t *testing.T) {
	m, _ := startModules(t)
	rec := &dispatchtest.Recorder{}
	s, err := m.Connect(context.Background(), "conn-1", "alice", rec)
	require.NoError(t, err)

	tests := []struct {
		name   string
		data   []byte
		reason string
	}{
		{"not json", []byte("hello"), events.ReasonInvalidFormat},
		{"no event", []byte(`{"data":"x"}`), events.ReasonInvalidFormat},
		{"unknown event", frame("room:explode", `"x"`), events.ReasonUnknownEvent + "room:explode"},
		{"join without data", []byte(`{"event":"room:join"}`), events.ReasonInvalidFormat},
		{"join with object", frame(events.WSRoomJoin, `{"chatId":"x"}`), events.ReasonInvalidFormat},
		{"send without chat", frame(events.WSMessageSend, `{"content":"hi"}`), events.ReasonInvalidChatID},
		{"seen without message", frame(events.WSMessageSeen, `{}`), events.ReasonInvalidMessageID},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.Handle(context.Background(), tt.data)
			rec.WaitFor(t, events.WSError, i+1)
			var reason string
			rec.Decode(t, events.WSError, i, &reason)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestSession_ChatFlow(t *testing.T) {
	ctx := context.Background()
	m, st := startModules(t)
	storetest.SeedUsers(t, st, "alice", "bob")
	chatID := storetest.SeedChat(t, st, false, "alice", "bob")

	recA := &dispatchtest.Recorder{}
	recB := &dispatchtest.Recorder{}
	a, err := m.Connect(ctx, "conn-a", "alice", recA)
	require.NoError(t, err)
	b, err := m.Connect(ctx, "conn-b", "bob", recB)
	require.NoError(t, err)

	// alice was told bob came online.
	recA.WaitFor(t, events.WSUserPresence, 1)
	var online userdomain.Presence
	recA.Decode(t, events.WSUserPresence, 0, &online)
	assert.Equal(t, "bob", online.UserID)
	assert.True(t, online.IsOnline)

	a.Handle(ctx, frame(events.WSRoomJoin, fmt.Sprintf("%q", chatID)))
	b.Handle(ctx, frame(events.WSRoomJoin, fmt.Sprintf("%q", chatID)))
	a.Handle(ctx, frame(events.WSTypingStart, fmt.Sprintf(`{"chatId":%q,"name":"Alice"}`, chatID)))
	a.Handle(ctx, frame(events.WSMessageSend, fmt.Sprintf(`{"chatId":%q,"content":"hello"}`, chatID)))

	recB.WaitFor(t, events.WSMessageReceive, 1)
	var msg domain.Message
	recB.Decode(t, events.WSMessageReceive, 0, &msg)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, 1, recB.Count(events.WSTypingStarted))

	b.Handle(ctx, frame(events.WSMessageSeen, fmt.Sprintf(`{"messageId":%q}`, msg.ID)))
	recA.WaitFor(t, events.WSMessageUpdated, 1)
	var seen messaging.MessageUpdatedPayload
	recA.Decode(t, events.WSMessageUpdated, 0, &seen)
	assert.Equal(t, []string{"alice", "bob"}, seen.SeenBy)

	b.Close(ctx)
	recA.WaitFor(t, events.WSUserPresence, 2)
	var offline userdomain.Presence
	recA.Decode(t, events.WSUserPresence, 1, &offline)
	assert.False(t, offline.IsOnline)

	assert.Equal(t, 0, recA.Count(events.WSTypingStarted), "the typist does not see its own indicator")
	assert.Equal(t, 0, recA.Count(events.WSError))
	assert.Equal(t, 0, recB.Count(events.WSError))

	health := m.Health(ctx)
	assert.True(t, health.Healthy)
	assert.Equal(t, 1, health.Details["connections"])
}

func TestModule_StopPersistsOffline(t *testing.T) {
	ctx := context.Background()
	m, st := startModules(t)
	storetest.SeedUsers(t, st, "alice")

	s, err := m.Connect(ctx, "conn-1", "alice", &dispatchtest.Recorder{})
	require.NoError(t, err)
	u, err := st.FindUser(ctx, "alice")
	require.NoError(t, err)
	require.True(t, u.IsOnline)

	require.NoError(t, m.Stop(ctx))
	// The read loop notices the closed socket after shutdown.
	s.Close(ctx)

	u, err = st.FindUser(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, u.IsOnline)
	assert.Equal(t, presence.StateOffline, m.Tracker().State("alice"))
	assert.Equal(t, 0, m.Health(ctx).Details["connections"])
	<-s.Done()
}

func TestModule_Services(t *testing.T) {
	ctx := context.Background()
	m, st := startModules(t)
	chatID := storetest.SeedChat(t, st, false, "alice", "bob")

	resp, err := m.handleSendMessage(ctx, SendMessageRequest{ChatID: chatID, SenderID: "alice", Content: "via rest"}, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "via rest", resp.Message.Content)

	seen, err := m.handleMarkSeen(ctx, MarkSeenRequest{MessageID: resp.Message.ID, UserID: "bob"}, nil)
	require.NoError(t, err)
	assert.Equal(t, chatID, seen.ChatID)
	assert.Equal(t, []string{"alice", "bob"}, seen.SeenBy)

	_, err = m.handleSendMessage(ctx, SendMessageRequest{ChatID: chatID, SenderID: "mallory", Content: "x"}, nil)
	assert.ErrorIs(t, err, messaging.ErrAuthorizationDenied)
}

func TestRemoteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"denied", errors.New("service error: send to chat x: not a member of this chat"), messaging.ErrAuthorizationDenied},
		{"invalid", errors.New("invalid message content: content is empty"), messaging.ErrInvalidContent},
		{"not found", errors.New("chat x: not found"), messaging.ErrNotFound},
		{"persistence", errors.New("failed to persist: disk I/O error"), messaging.ErrPersistence},
		{"persistence with not found text", errors.New("failed to persist: table messages not found"), messaging.ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := remoteError("op", tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("remoteError() = %v, want wrapping %v", got, tt.want)
			}
		})
	}

	plain := remoteError("op", errors.New("timeout"))
	assert.False(t, errors.Is(plain, messaging.ErrNotFound))
}

func TestNewRealtimeAdapter_NilContainer(t *testing.T) {
	assert.Panics(t, func() { NewRealtimeAdapter(nil) })
}
