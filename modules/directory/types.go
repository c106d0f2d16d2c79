package directory

import (
	"errors"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Service names.
const (
	ServiceCreateChat      = "create-chat"
	ServiceCreateGroupChat = "create-group-chat"
	ServiceStartDirectChat = "start-direct-chat"
	ServiceGetChat         = "get-chat"
	ServiceListChats       = "list-chats"
	ServiceInviteToChat    = "invite-to-chat"
	ServiceListMessages    = "list-messages"
)

// History limits.
const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
)

// Directory errors. The text of each error is stable; adapters match on it
// to restore the error on the calling side.
var (
	ErrInvalidRequest = errors.New("invalid chat request")
	ErrChatNotFound   = errors.New("chat not found")
	ErrForbidden      = errors.New("access to chat denied")
	ErrNotGroup       = errors.New("chat is not a group")
	ErrAlreadyMember  = errors.New("user is already a member")
)

// CreateChatRequest creates a direct or group chat.
type CreateChatRequest struct {
	CreatorID string   `json:"creator_id"`
	UserIDs   []string `json:"user_ids"`
	IsGroup   bool     `json:"is_group"`
	Name      string   `json:"name,omitempty"`
}

// CreateGroupChatRequest creates a named group chat.
type CreateGroupChatRequest struct {
	CreatorID string   `json:"creator_id"`
	Name      string   `json:"name"`
	UserIDs   []string `json:"user_ids"`
}

// StartDirectChatRequest opens (or reuses) the 1:1 chat between two users.
type StartDirectChatRequest struct {
	UserID       string `json:"user_id"`
	TargetUserID string `json:"target_user_id"`
}

// GetChatRequest loads a chat for one of its members.
type GetChatRequest struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// ListChatsRequest lists the chats of a user.
type ListChatsRequest struct {
	UserID string `json:"user_id"`
}

// InviteToChatRequest adds a user to a group chat.
type InviteToChatRequest struct {
	ChatID    string `json:"chat_id"`
	InviterID string `json:"inviter_id"`
	UserID    string `json:"user_id"`
}

// ListMessagesRequest reads the history of a chat.
type ListMessagesRequest struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// ChatResponse carries a single chat. Created is false when an existing
// chat was returned.
type ChatResponse struct {
	Chat    *domain.Chat `json:"chat"`
	Created bool         `json:"created"`
}

// ListChatsResponse carries the chats of a user.
type ListChatsResponse struct {
	Chats []domain.Chat `json:"chats"`
}

// ListMessagesResponse carries chat history, oldest first.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}
