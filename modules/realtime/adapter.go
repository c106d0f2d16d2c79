package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/modules/messaging"
)

// RealtimePort is how other modules send messages and seen receipts without
// holding a connection.
type RealtimePort interface {
	SendMessage(ctx context.Context, senderID, chatID, content string) (*domain.Message, error)
	MarkSeen(ctx context.Context, userID, messageID string) (*MarkSeenResponse, error)
}

// RealtimeAdapter implements RealtimePort using the service container.
type RealtimeAdapter struct {
	container mono.ServiceContainer
}

// NewRealtimeAdapter creates a new RealtimeAdapter.
func NewRealtimeAdapter(container mono.ServiceContainer) RealtimePort {
	if container == nil {
		panic("realtime: ServiceContainer is nil")
	}
	return &RealtimeAdapter{container: container}
}

// SendMessage sends a message as senderID.
func (a *RealtimeAdapter) SendMessage(ctx context.Context, senderID, chatID, content string) (*domain.Message, error) {
	req := SendMessageRequest{ChatID: chatID, SenderID: senderID, Content: content}
	var resp SendMessageResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSendMessage,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, remoteError("send message", err)
	}
	return resp.Message, nil
}

// MarkSeen records userID as a viewer of messageID.
func (a *RealtimeAdapter) MarkSeen(ctx context.Context, userID, messageID string) (*MarkSeenResponse, error) {
	req := MarkSeenRequest{MessageID: messageID, UserID: userID}
	var resp MarkSeenResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceMarkSeen,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, remoteError("mark seen", err)
	}
	return &resp, nil
}

// remoteError restores the messaging sentinel carried in a service error's
// text so callers can use errors.Is.
func remoteError(op string, err error) error {
	msg := err.Error()
	// Persistence first: driver text wrapped in it may contain "not found".
	for _, sentinel := range []error{
		messaging.ErrPersistence,
		messaging.ErrAuthorizationDenied,
		messaging.ErrInvalidContent,
		messaging.ErrNotFound,
	} {
		if strings.Contains(msg, sentinel.Error()) {
			return fmt.Errorf("%s: %w: %s", op, sentinel, msg)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
