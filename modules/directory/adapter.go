package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/realtime-chat/domain/chat"
)

// ChatPort defines the interface for chat directory operations.
type ChatPort interface {
	CreateChat(ctx context.Context, req CreateChatRequest) (*domain.Chat, error)
	CreateGroupChat(ctx context.Context, req CreateGroupChatRequest) (*domain.Chat, error)
	StartDirectChat(ctx context.Context, userID, targetUserID string) (*domain.Chat, bool, error)
	GetChat(ctx context.Context, chatID, userID string) (*domain.Chat, error)
	ListChats(ctx context.Context, userID string) ([]domain.Chat, error)
	InviteToChat(ctx context.Context, chatID, inviterID, userID string) (*domain.Chat, error)
	ListMessages(ctx context.Context, chatID, userID string, limit int) ([]domain.Message, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("directory: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

// CreateChat creates a direct or group chat.
func (a *ChatAdapter) CreateChat(ctx context.Context, req CreateChatRequest) (*domain.Chat, error) {
	var resp ChatResponse
	if err := call(ctx, a.container, ServiceCreateChat, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Chat, nil
}

// CreateGroupChat creates a named group chat.
func (a *ChatAdapter) CreateGroupChat(ctx context.Context, req CreateGroupChatRequest) (*domain.Chat, error) {
	var resp ChatResponse
	if err := call(ctx, a.container, ServiceCreateGroupChat, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Chat, nil
}

// StartDirectChat opens or reuses the 1:1 chat between two users.
func (a *ChatAdapter) StartDirectChat(ctx context.Context, userID, targetUserID string) (*domain.Chat, bool, error) {
	req := StartDirectChatRequest{UserID: userID, TargetUserID: targetUserID}
	var resp ChatResponse
	if err := call(ctx, a.container, ServiceStartDirectChat, &req, &resp); err != nil {
		return nil, false, err
	}
	return resp.Chat, resp.Created, nil
}

// GetChat retrieves a chat for one of its members.
func (a *ChatAdapter) GetChat(ctx context.Context, chatID, userID string) (*domain.Chat, error) {
	req := GetChatRequest{ChatID: chatID, UserID: userID}
	var resp ChatResponse
	if err := call(ctx, a.container, ServiceGetChat, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Chat, nil
}

// ListChats lists the chats of a user.
func (a *ChatAdapter) ListChats(ctx context.Context, userID string) ([]domain.Chat, error) {
	req := ListChatsRequest{UserID: userID}
	var resp ListChatsResponse
	if err := call(ctx, a.container, ServiceListChats, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// InviteToChat adds a user to a group chat.
func (a *ChatAdapter) InviteToChat(ctx context.Context, chatID, inviterID, userID string) (*domain.Chat, error) {
	req := InviteToChatRequest{ChatID: chatID, InviterID: inviterID, UserID: userID}
	var resp ChatResponse
	if err := call(ctx, a.container, ServiceInviteToChat, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Chat, nil
}

// ListMessages reads the history of a chat.
func (a *ChatAdapter) ListMessages(ctx context.Context, chatID, userID string, limit int) ([]domain.Message, error) {
	req := ListMessagesRequest{ChatID: chatID, UserID: userID, Limit: limit}
	var resp ListMessagesResponse
	if err := call(ctx, a.container, ServiceListMessages, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return remoteError(service, err)
	}
	return nil
}

// remoteError restores the directory error carried in a service error's
// text so callers can use errors.Is.
func remoteError(service string, err error) error {
	msg := err.Error()
	for _, sentinel := range []error{
		ErrInvalidRequest,
		ErrChatNotFound,
		ErrForbidden,
		ErrNotGroup,
		ErrAlreadyMember,
	} {
		if strings.Contains(msg, sentinel.Error()) {
			return fmt.Errorf("%s request failed: %w: %s", service, sentinel, msg)
		}
	}
	return fmt.Errorf("%s request failed: %w", service, err)
}
