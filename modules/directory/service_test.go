package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/example/realtime-chat/domain/chat"
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

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := storetest.New(t)
	return NewService(st), st
}

func TestService_CreateGroupChat_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	chat, err := svc.CreateGroupChat(ctx, "A", "Team", []string{"B", "C"})
	require.NoError(t, err)

	got, err := svc.GetChat(ctx, chat.ID, "B")
	require.NoError(t, err)
	assert.True(t, got.IsGroup)
	require.NotNil(t, got.Name)
	assert.Equal(t, "Team", *got.Name)
	assert.Equal(t, []string{"A", "B", "C"}, got.MemberIDs())
	assert.Equal(t, domain.RoleAdmin, got.Members[0].Role)
	assert.Equal(t, domain.RoleMember, got.Members[1].Role)
	assert.Equal(t, domain.RoleMember, got.Members[2].Role)
}

func TestService_CreateChat_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	tests := []struct {
		name    string
		creator string
		users   []string
		isGroup bool
		wantErr error
	}{
		{"direct", "A", []string{"B"}, false, nil},
		{"group", "A", []string{"B", "C"}, true, nil},
		{"group of two", "A", []string{"B"}, true, nil},
		{"no creator", "", []string{"B"}, false, ErrInvalidRequest},
		{"alone", "A", nil, true, ErrInvalidRequest},
		{"only self", "A", []string{"A", " "}, false, ErrInvalidRequest},
		{"direct with two others", "A", []string{"B", "C"}, false, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateChat(ctx, tt.creator, tt.users, tt.isGroup, "")
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_CreateChat_DeduplicatesAndDropsDirectName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	chat, err := svc.CreateChat(ctx, "A", []string{"B", "A", "B"}, false, "ignored")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, chat.MemberIDs())
	assert.Nil(t, chat.Name)
}

func TestService_CreateGroupChat_RequiresName(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateGroupChat(context.Background(), "A", "  ", []string{"B"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_StartDirectChat(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, created, err := svc.StartDirectChat(ctx, "A", "B")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := svc.StartDirectChat(ctx, "B", "A")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, _, err = svc.StartDirectChat(ctx, "A", "A")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, _, err = svc.StartDirectChat(ctx, "A", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_GetChat_Access(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	chatID := storetest.SeedChat(t, st, false, "A", "B")

	_, err := svc.GetChat(ctx, chatID, "C")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetChat(ctx, "6f1c6a2e-0c43-4d8e-9a3e-3f1c1d1f7a01", "A")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestService_InviteToChat(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	group := storetest.SeedChat(t, st, true, "A", "B")
	direct := storetest.SeedChat(t, st, false, "A", "B")

	chat, err := svc.InviteToChat(ctx, group, "B", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, chat.MemberIDs())
	assert.Equal(t, domain.RoleMember, chat.Members[2].Role)

	tests := []struct {
		name    string
		chatID  string
		inviter string
		invitee string
		wantErr error
	}{
		{"already member", group, "A", "C", ErrAlreadyMember},
		{"inviter not member", group, "D", "E", ErrForbidden},
		{"direct chat", direct, "A", "C", ErrNotGroup},
		{"missing chat", "6f1c6a2e-0c43-4d8e-9a3e-3f1c1d1f7a01", "A", "C", ErrChatNotFound},
		{"no invitee", group, "A", "", ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.InviteToChat(ctx, tt.chatID, tt.inviter, tt.invitee)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_ListMessages(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	chatID := storetest.SeedChat(t, st, false, "A", "B")

	empty, err := svc.ListMessages(ctx, chatID, "A", 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.ListMessages(ctx, chatID, "C", 10)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_ListChats(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	storetest.SeedChat(t, st, false, "A", "B")

	chats, err := svc.ListChats(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	none, err := svc.ListChats(ctx, "Z")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestModule_Handlers(t *testing.T) {
	ctx := context.Background()
	storeModule := store.NewModule(":memory:")
	require.NoError(t, storeModule.Start(ctx))
	t.Cleanup(func() { storeModule.Stop(ctx) })

	m := NewModule(storeModule, &mockLogger{})
	require.NoError(t, m.Start(ctx))
	assert.True(t, m.Health(ctx).Healthy)
	assert.Len(t, m.EmitEvents(), 2)

	created, err := m.handleCreateGroupChat(ctx, CreateGroupChatRequest{CreatorID: "A", Name: "Team", UserIDs: []string{"B", "C"}}, nil)
	require.NoError(t, err)
	assert.True(t, created.Created)

	invited, err := m.handleInviteToChat(ctx, InviteToChatRequest{ChatID: created.Chat.ID, InviterID: "A", UserID: "D"}, nil)
	require.NoError(t, err)
	assert.Len(t, invited.Chat.Members, 4)

	direct, err := m.handleStartDirectChat(ctx, StartDirectChatRequest{UserID: "A", TargetUserID: "B"}, nil)
	require.NoError(t, err)
	assert.True(t, direct.Created)

	_, err = m.handleGetChat(ctx, GetChatRequest{ChatID: direct.Chat.ID, UserID: "C"}, nil)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRemoteError(t *testing.T) {
	for _, sentinel := range []error{ErrInvalidRequest, ErrChatNotFound, ErrForbidden, ErrNotGroup, ErrAlreadyMember} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			got := remoteError(ServiceGetChat, errors.New("service error: "+sentinel.Error()))
			if !errors.Is(got, sentinel) {
				t.Errorf("remoteError() = %v, want wrapping %v", got, sentinel)
			}
		})
	}

	assert.Panics(t, func() { NewChatAdapter(nil) })
}
