// Package messaging implements the inbound chat operations: sending,
// seen receipts, typing indicators and room subscriptions.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/dispatch"
	"github.com/example/realtime-chat/modules/store"
)

// Store is the persistence the pipeline needs.
type Store interface {
	CreateMessage(ctx context.Context, msg *domain.Message) (time.Time, error)
	ChatMemberIDs(ctx context.Context, chatID string) ([]string, error)
	FindMessage(ctx context.Context, messageID string) (*domain.Message, error)
	AddSeen(ctx context.Context, messageID, userID string) (*domain.Message, error)
}

// MembershipChecker answers whether a user belongs to a chat.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID, chatID string) bool
}

// Rooms manages room subscriptions of a connection.
type Rooms interface {
	JoinRoom(ctx context.Context, c *dispatch.Client, chatID string) bool
	LeaveRoom(c *dispatch.Client, chatID string)
}

// Dispatcher delivers outbound events.
type Dispatcher interface {
	Publish(channel, event string, payload any) error
	PublishExcept(channel, exceptID, event string, payload any) error
	Send(c *dispatch.Client, event string, payload any) error
}

// Pipeline runs each inbound chat operation against the store and fans the
// result out through the dispatcher.
type Pipeline struct {
	store      Store
	members    MembershipChecker
	rooms      Rooms
	dispatcher Dispatcher
	now        func() time.Time
	logger     types.Logger
}

// New creates a Pipeline.
func New(st Store, members MembershipChecker, rooms Rooms, d Dispatcher, logger types.Logger) *Pipeline {
	return &Pipeline{
		store:      st,
		members:    members,
		rooms:      rooms,
		dispatcher: d,
		now:        time.Now,
		logger:     logger,
	}
}

// JoinRoom subscribes c to the chat's room if its user is a member.
func (p *Pipeline) JoinRoom(ctx context.Context, c *dispatch.Client, chatID string) bool {
	return p.rooms.JoinRoom(ctx, c, chatID)
}

// LeaveRoom unsubscribes c from the chat's room.
func (p *Pipeline) LeaveRoom(c *dispatch.Client, chatID string) {
	p.rooms.LeaveRoom(c, chatID)
}

// Send persists a message from c's user and fans it out. Failures are
// reported to c only.
func (p *Pipeline) Send(ctx context.Context, c *dispatch.Client, chatID, content string) {
	if _, err := p.SendAs(ctx, c.UserID(), chatID, content); err != nil {
		p.logger.Warn("Send rejected", "connID", c.ID(), "userID", c.UserID(), "chatID", chatID, "error", err)
		p.sendError(c, sendFailureReason(err))
	}
}

// SendAs persists a message from senderID and fans it out to the chat's
// members and room.
func (p *Pipeline) SendAs(ctx context.Context, senderID, chatID, content string) (*domain.Message, error) {
	if !p.members.IsMember(ctx, senderID, chatID) {
		return nil, fmt.Errorf("send to chat %s: %w", chatID, ErrAuthorizationDenied)
	}
	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      domain.MessageTypeText,
		CreatedAt: p.now().UTC(),
	}
	updatedAt, err := p.store.CreateMessage(ctx, msg)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	p.fanOut(ctx, msg, updatedAt)
	p.logger.Debug("Message sent", "messageID", msg.ID, "chatID", chatID, "senderID", senderID)
	return msg, nil
}

// fanOut publishes chat:updated to every member's personal channel, then
// message:receive to the chat room.
func (p *Pipeline) fanOut(ctx context.Context, msg *domain.Message, updatedAt time.Time) {
	memberIDs, err := p.store.ChatMemberIDs(ctx, msg.ChatID)
	if err != nil {
		p.logger.Error("Failed to load chat members", "chatID", msg.ChatID, "error", err)
	}

	update := ChatUpdatedPayload{
		ChatID:        msg.ChatID,
		LatestMessage: msg.Summary(),
		UpdatedAt:     updatedAt,
	}
	for _, memberID := range memberIDs {
		if err := p.dispatcher.Publish(dispatch.UserChannel(memberID), events.WSChatUpdated, update); err != nil {
			p.logger.Error("Failed to publish chat update", "chatID", msg.ChatID, "userID", memberID, "error", err)
		}
	}

	if err := p.dispatcher.Publish(dispatch.ChatChannel(msg.ChatID), events.WSMessageReceive, msg); err != nil {
		p.logger.Error("Failed to publish message", "messageID", msg.ID, "error", err)
	}
}

// Seen records c's user as a viewer of messageID. Failures are only logged.
func (p *Pipeline) Seen(ctx context.Context, c *dispatch.Client, messageID string) {
	if _, err := p.SeenAs(ctx, c.UserID(), messageID); err != nil {
		p.logger.Warn("Seen receipt dropped", "connID", c.ID(), "userID", c.UserID(), "messageID", messageID, "error", err)
	}
}

// SeenAs appends userID to the viewers of messageID and announces the new
// viewer list on the message's chat room. Marking a message seen twice
// leaves the viewer list unchanged.
func (p *Pipeline) SeenAs(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, fmt.Errorf("message: %w", ErrNotFound)
	}

	found, err := p.store.FindMessage(ctx, messageID)
	if err != nil {
		return nil, storeError("message "+messageID, err)
	}
	if !p.members.IsMember(ctx, userID, found.ChatID) {
		return nil, fmt.Errorf("seen in chat %s: %w", found.ChatID, ErrAuthorizationDenied)
	}

	msg, err := p.store.AddSeen(ctx, messageID, userID)
	if err != nil {
		return nil, storeError("message "+messageID, err)
	}

	update := MessageUpdatedPayload{MessageID: msg.ID, SeenBy: msg.SeenBy}
	if err := p.dispatcher.Publish(dispatch.ChatChannel(msg.ChatID), events.WSMessageUpdated, update); err != nil {
		p.logger.Error("Failed to publish seen update", "messageID", msg.ID, "error", err)
	}
	return msg, nil
}

// TypingStart tells the rest of the room that c's user is typing. Signals
// from non-members are dropped.
func (p *Pipeline) TypingStart(ctx context.Context, c *dispatch.Client, chatID, name string) {
	if !p.members.IsMember(ctx, c.UserID(), chatID) {
		p.logger.Debug("Typing signal dropped", "connID", c.ID(), "userID", c.UserID(), "chatID", chatID)
		return
	}
	payload := TypingPayload{ChatID: chatID, UserID: c.UserID(), Name: name}
	if err := p.dispatcher.PublishExcept(dispatch.ChatChannel(chatID), c.ID(), events.WSTypingStarted, payload); err != nil {
		p.logger.Error("Failed to publish typing start", "chatID", chatID, "error", err)
	}
}

// TypingStop tells the rest of the room that c's user stopped typing.
func (p *Pipeline) TypingStop(ctx context.Context, c *dispatch.Client, chatID string) {
	if !p.members.IsMember(ctx, c.UserID(), chatID) {
		p.logger.Debug("Typing signal dropped", "connID", c.ID(), "userID", c.UserID(), "chatID", chatID)
		return
	}
	payload := TypingPayload{ChatID: chatID, UserID: c.UserID()}
	if err := p.dispatcher.PublishExcept(dispatch.ChatChannel(chatID), c.ID(), events.WSTypingStopped, payload); err != nil {
		p.logger.Error("Failed to publish typing stop", "chatID", chatID, "error", err)
	}
}

// ValidateContent rejects blank messages and messages longer than
// MaxContentLength bytes.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidContent)
	}
	if len(content) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidContent, MaxContentLength)
	}
	return nil
}

func storeError(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func (p *Pipeline) sendError(c *dispatch.Client, reason string) {
	if err := p.dispatcher.Send(c, events.WSError, reason); err != nil {
		p.logger.Error("Failed to send error", "connID", c.ID(), "error", err)
	}
}

func sendFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrAuthorizationDenied):
		return events.ReasonCannotSend
	case errors.Is(err, ErrInvalidContent):
		return events.ReasonInvalidContent
	case errors.Is(err, ErrNotFound):
		return events.ReasonChatNotFound
	default:
		return events.ReasonSendFailed
	}
}
