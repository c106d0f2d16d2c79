// Package directory creates chats, manages their members and serves chat
// history.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/modules/store"
)

// Store is the persistence the directory needs.
type Store interface {
	CreateChat(ctx context.Context, chat *domain.Chat) error
	FindChat(ctx context.Context, chatID string) (*domain.Chat, error)
	FindDirectChat(ctx context.Context, a, b string) (*domain.Chat, error)
	ListChats(ctx context.Context, userID string) ([]domain.Chat, error)
	AddMember(ctx context.Context, chatID, userID string, role domain.Role) error
	ListMessages(ctx context.Context, chatID string, limit int) ([]domain.Message, error)
}

// Service implements the chat directory rules.
type Service struct {
	store Store
}

// NewService creates a new directory service.
func NewService(st Store) *Service {
	return &Service{store: st}
}

// CreateChat creates a chat owned by creatorID. The creator joins as admin,
// everyone else as member. A direct chat has exactly two members and no name.
func (s *Service) CreateChat(ctx context.Context, creatorID string, userIDs []string, isGroup bool, name string) (*domain.Chat, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, fmt.Errorf("%w: creator is required", ErrInvalidRequest)
	}
	others := uniqueOthers(creatorID, userIDs)
	if len(others) == 0 {
		return nil, fmt.Errorf("%w: a chat needs at least 2 members", ErrInvalidRequest)
	}
	if !isGroup && len(others) != 1 {
		return nil, fmt.Errorf("%w: a direct chat needs exactly one other user", ErrInvalidRequest)
	}

	chat := &domain.Chat{
		ID:      uuid.New().String(),
		IsGroup: isGroup,
	}
	if name = strings.TrimSpace(name); isGroup && name != "" {
		chat.Name = &name
	}
	chat.Members = append(chat.Members, domain.ChatMember{UserID: creatorID, Role: domain.RoleAdmin})
	for _, id := range others {
		chat.Members = append(chat.Members, domain.ChatMember{UserID: id, Role: domain.RoleMember})
	}

	if err := s.store.CreateChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

// CreateGroupChat creates a named group chat with creatorID as admin.
func (s *Service) CreateGroupChat(ctx context.Context, creatorID, name string, userIDs []string) (*domain.Chat, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidRequest)
	}
	return s.CreateChat(ctx, creatorID, userIDs, true, name)
}

// StartDirectChat returns the 1:1 chat between userID and targetUserID,
// creating it when it does not exist yet.
func (s *Service) StartDirectChat(ctx context.Context, userID, targetUserID string) (*domain.Chat, bool, error) {
	if strings.TrimSpace(targetUserID) == "" || targetUserID == userID {
		return nil, false, fmt.Errorf("%w: invalid target user", ErrInvalidRequest)
	}

	existing, err := s.store.FindDirectChat(ctx, userID, targetUserID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to find direct chat: %w", err)
	}

	chat, err := s.CreateChat(ctx, userID, []string{targetUserID}, false, "")
	if err != nil {
		return nil, false, err
	}
	return chat, true, nil
}

// GetChat returns the chat if userID is one of its members.
func (s *Service) GetChat(ctx context.Context, chatID, userID string) (*domain.Chat, error) {
	chat, err := s.findChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(userID) {
		return nil, ErrForbidden
	}
	return chat, nil
}

// ListChats returns the chats of userID, most recently active first.
func (s *Service) ListChats(ctx context.Context, userID string) ([]domain.Chat, error) {
	chats, err := s.store.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	return chats, nil
}

// InviteToChat adds userID to a group chat on behalf of inviterID, who must
// already be a member.
func (s *Service) InviteToChat(ctx context.Context, chatID, inviterID, userID string) (*domain.Chat, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user to invite is required", ErrInvalidRequest)
	}
	chat, err := s.findChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(inviterID) {
		return nil, ErrForbidden
	}
	if !chat.IsGroup {
		return nil, ErrNotGroup
	}
	if chat.HasMember(userID) {
		return nil, ErrAlreadyMember
	}

	if err := s.store.AddMember(ctx, chatID, userID, domain.RoleMember); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyMember):
			return nil, ErrAlreadyMember
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return s.findChat(ctx, chatID)
}

// ListMessages returns up to limit of the latest messages of a chat,
// oldest first, for one of its members.
func (s *Service) ListMessages(ctx context.Context, chatID, userID string, limit int) ([]domain.Message, error) {
	if _, err := s.GetChat(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}

	messages, err := s.store.ListMessages(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

func (s *Service) findChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	chat, err := s.store.FindChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return chat, nil
}

// uniqueOthers returns userIDs without blanks, duplicates and creatorID, in
// their original order.
func uniqueOthers(creatorID string, userIDs []string) []string {
	seen := map[string]bool{creatorID: true}
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
