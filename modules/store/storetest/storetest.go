// Package storetest provides an in-memory store and fixtures for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"

	domain "github.com/example/realtime-chat/domain/chat"
	userdomain "github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/modules/store"
)

// New returns a store on a fresh in-memory SQLite database.
func New(t *testing.T) *store.Store {
	t.Helper()

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return store.New(db)
}

// SeedUsers creates a profile row for each name, using the name as id.
func SeedUsers(t *testing.T, s *store.Store, names ...string) {
	t.Helper()

	for _, name := range names {
		if err := s.SaveUser(context.Background(), &userdomain.User{ID: name, Name: name}); err != nil {
			t.Fatalf("failed to seed user %s: %v", name, err)
		}
	}
}

// SeedChat creates a chat with the given members and returns its id. The
// first member is the admin.
func SeedChat(t *testing.T, s *store.Store, isGroup bool, members ...string) string {
	t.Helper()

	chat := &domain.Chat{
		ID:      uuid.New().String(),
		IsGroup: isGroup,
	}
	for i, userID := range members {
		role := domain.RoleMember
		if i == 0 {
			role = domain.RoleAdmin
		}
		chat.Members = append(chat.Members, domain.ChatMember{UserID: userID, Role: role})
	}
	if err := s.CreateChat(context.Background(), chat); err != nil {
		t.Fatalf("failed to seed chat: %v", err)
	}
	return chat.ID
}
