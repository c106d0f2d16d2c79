package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/store"
)

// Module exposes the chat directory as request-reply services and announces
// membership changes on the event bus.
type Module struct {
	storeModule *store.Module
	service     *Service
	eventBus    mono.EventBus
	logger      types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the directory module.
func NewModule(storeModule *store.Module, logger types.Logger) *Module {
	return &Module{
		storeModule: storeModule,
		logger:      logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "directory"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.ChatCreatedV1.ToBase(),
		events.ChatMembersChangedV1.ToBase(),
	}
}

// Start builds the service on top of the started store.
func (m *Module) Start(_ context.Context) error {
	st := m.storeModule.Store()
	if st == nil {
		return fmt.Errorf("store module not started")
	}
	m.service = NewService(st)
	log.Println("[directory] Module started")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[directory] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"event_bus": m.eventBus != nil,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateChat, json.Unmarshal, json.Marshal, m.handleCreateChat,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateChat, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateGroupChat, json.Unmarshal, json.Marshal, m.handleCreateGroupChat,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateGroupChat, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceStartDirectChat, json.Unmarshal, json.Marshal, m.handleStartDirectChat,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceStartDirectChat, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetChat, json.Unmarshal, json.Marshal, m.handleGetChat,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetChat, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListChats, json.Unmarshal, json.Marshal, m.handleListChats,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListChats, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceInviteToChat, json.Unmarshal, json.Marshal, m.handleInviteToChat,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceInviteToChat, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListMessages, json.Unmarshal, json.Marshal, m.handleListMessages,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListMessages, err)
	}

	log.Println("[directory] Registered services: create-chat, create-group-chat, start-direct-chat, get-chat, list-chats, invite-to-chat, list-messages")
	return nil
}

func (m *Module) handleCreateChat(ctx context.Context, req CreateChatRequest, _ *mono.Msg) (ChatResponse, error) {
	chat, err := m.service.CreateChat(ctx, req.CreatorID, req.UserIDs, req.IsGroup, req.Name)
	if err != nil {
		return ChatResponse{}, err
	}
	m.publishChatCreated(chat, req.CreatorID)
	return ChatResponse{Chat: chat, Created: true}, nil
}

func (m *Module) handleCreateGroupChat(ctx context.Context, req CreateGroupChatRequest, _ *mono.Msg) (ChatResponse, error) {
	chat, err := m.service.CreateGroupChat(ctx, req.CreatorID, req.Name, req.UserIDs)
	if err != nil {
		return ChatResponse{}, err
	}
	m.publishChatCreated(chat, req.CreatorID)
	return ChatResponse{Chat: chat, Created: true}, nil
}

func (m *Module) handleStartDirectChat(ctx context.Context, req StartDirectChatRequest, _ *mono.Msg) (ChatResponse, error) {
	chat, created, err := m.service.StartDirectChat(ctx, req.UserID, req.TargetUserID)
	if err != nil {
		return ChatResponse{}, err
	}
	if created {
		m.publishChatCreated(chat, req.UserID)
	}
	return ChatResponse{Chat: chat, Created: created}, nil
}

func (m *Module) handleGetChat(ctx context.Context, req GetChatRequest, _ *mono.Msg) (ChatResponse, error) {
	chat, err := m.service.GetChat(ctx, req.ChatID, req.UserID)
	if err != nil {
		return ChatResponse{}, err
	}
	return ChatResponse{Chat: chat}, nil
}

func (m *Module) handleListChats(ctx context.Context, req ListChatsRequest, _ *mono.Msg) (ListChatsResponse, error) {
	chats, err := m.service.ListChats(ctx, req.UserID)
	if err != nil {
		return ListChatsResponse{}, err
	}
	return ListChatsResponse{Chats: chats}, nil
}

func (m *Module) handleInviteToChat(ctx context.Context, req InviteToChatRequest, _ *mono.Msg) (ChatResponse, error) {
	chat, err := m.service.InviteToChat(ctx, req.ChatID, req.InviterID, req.UserID)
	if err != nil {
		return ChatResponse{}, err
	}

	event := events.ChatMembersChangedEvent{
		ChatID:    chat.ID,
		UserIDs:   []string{req.UserID},
		ChangedBy: req.InviterID,
		Timestamp: time.Now(),
	}
	if m.eventBus != nil {
		if err := events.ChatMembersChangedV1.Publish(m.eventBus, event, nil); err != nil {
			m.logger.Warn("Failed to publish ChatMembersChanged event", "chatID", chat.ID, "error", err)
		}
	}

	m.logger.Info("User invited to chat", "chatID", chat.ID, "userID", req.UserID, "inviterID", req.InviterID)
	return ChatResponse{Chat: chat}, nil
}

func (m *Module) handleListMessages(ctx context.Context, req ListMessagesRequest, _ *mono.Msg) (ListMessagesResponse, error) {
	messages, err := m.service.ListMessages(ctx, req.ChatID, req.UserID, req.Limit)
	if err != nil {
		return ListMessagesResponse{}, err
	}
	return ListMessagesResponse{Messages: messages}, nil
}

func (m *Module) publishChatCreated(chat *domain.Chat, createdBy string) {
	event := events.ChatCreatedEvent{
		ChatID:    chat.ID,
		IsGroup:   chat.IsGroup,
		MemberIDs: chat.MemberIDs(),
		CreatedBy: createdBy,
		Timestamp: chat.CreatedAt,
	}
	if chat.Name != nil {
		event.Name = *chat.Name
	}

	if m.eventBus != nil {
		if err := events.ChatCreatedV1.Publish(m.eventBus, event, nil); err != nil {
			m.logger.Warn("Failed to publish ChatCreated event", "chatID", chat.ID, "error", err)
		}
	}
	m.logger.Info("Chat created", "chatID", chat.ID, "isGroup", chat.IsGroup, "members", len(chat.Members))
}
