package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	userdomain "github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/dispatch"
	"github.com/example/realtime-chat/modules/dispatch/dispatchtest"
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

type failingStore struct {
	persistErr  error
	contactsErr error
	contacts    []string
}

func (f *failingStore) SetPresence(context.Context, string, bool, time.Time) error {
	return f.persistErr
}

func (f *failingStore) CoMemberIDs(context.Context, string) ([]string, error) {
	return f.contacts, f.contactsErr
}

func TestTracker_NotifiesContactsInOrder(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	storetest.SeedChat(t, s, false, "alice", "bob")
	storetest.SeedChat(t, s, true, "alice", "bob", "carol")
	storetest.SeedChat(t, s, false, "dave", "erin")

	d := dispatch.New(&mockLogger{})
	recorders := make(map[string]*dispatchtest.Recorder)
	for _, user := range []string{"alice", "bob", "carol", "dave"} {
		c, rec := dispatchtest.Connect("conn-"+user, user)
		require.True(t, d.Attach(c))
		d.Subscribe(c, dispatch.UserChannel(user))
		recorders[user] = rec
	}

	tracker := New(s, d, &mockLogger{})
	tracker.Online(ctx, "alice")
	assert.Equal(t, StateOnline, tracker.State("alice"))
	tracker.Online(ctx, "alice") // already online
	tracker.Offline(ctx, "alice")
	assert.Equal(t, StateOffline, tracker.State("alice"))
	d.Close()

	for _, contact := range []string{"bob", "carol"} {
		rec := recorders[contact]
		require.Equal(t, []string{events.WSUserPresence, events.WSUserPresence}, rec.Events(), contact)

		var first, second userdomain.Presence
		rec.Decode(t, events.WSUserPresence, 0, &first)
		rec.Decode(t, events.WSUserPresence, 1, &second)
		assert.Equal(t, "alice", first.UserID)
		assert.True(t, first.IsOnline)
		assert.False(t, second.IsOnline)
		assert.False(t, second.LastSeen.Before(first.LastSeen))
	}
	assert.Empty(t, recorders["alice"].Events(), "a user is not told about itself")
	assert.Empty(t, recorders["dave"].Events(), "users without a shared chat are not told")

	u, err := s.FindUser(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, u.IsOnline)
	assert.NotNil(t, u.LastSeen)
}

func TestTracker_PersistFailureStillNotifies(t *testing.T) {
	d := dispatch.New(&mockLogger{})
	c, rec := dispatchtest.Connect("conn-bob", "bob")
	require.True(t, d.Attach(c))
	d.Subscribe(c, dispatch.UserChannel("bob"))

	tracker := New(&failingStore{persistErr: errors.New("disk full"), contacts: []string{"bob"}}, d, &mockLogger{})
	tracker.Online(context.Background(), "alice")
	d.Close()

	assert.Equal(t, []string{events.WSUserPresence}, rec.Events())
	assert.Equal(t, StateOnline, tracker.State("alice"))
}

func TestTracker_ContactFailureIsSwallowed(t *testing.T) {
	d := dispatch.New(&mockLogger{})
	tracker := New(&failingStore{contactsErr: errors.New("timeout")}, d, &mockLogger{})

	tracker.Online(context.Background(), "alice")
	tracker.Offline(context.Background(), "alice")

	assert.Equal(t, StateOffline, tracker.State("alice"))
	assert.Equal(t, 0, tracker.OnlineCount())
}

func TestTracker_OfflineWithoutOnlineIsNoop(t *testing.T) {
	store := &failingStore{persistErr: errors.New("must not be called")}
	tracker := New(store, dispatch.New(&mockLogger{}), &mockLogger{})

	tracker.Offline(context.Background(), "alice")
	assert.Equal(t, StateOffline, tracker.State("alice"))
}
