package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/realtime-chat/modules/dispatch"
	"github.com/example/realtime-chat/modules/membership"
	"github.com/example/realtime-chat/modules/messaging"
	"github.com/example/realtime-chat/modules/presence"
	"github.com/example/realtime-chat/modules/registry"
	"github.com/example/realtime-chat/modules/store"
)

// Config holds realtime module configuration.
type Config struct {
	// OutboxSize is the per-connection outbound frame queue length.
	OutboxSize int
	// LifecycleTimeout bounds the store work done on connect and disconnect.
	LifecycleTimeout time.Duration
}

// DefaultConfig returns the default realtime configuration.
func DefaultConfig() Config {
	return Config{
		OutboxSize:       dispatch.DefaultOutboxSize,
		LifecycleTimeout: 5 * time.Second,
	}
}

// Module owns the live connection state: dispatcher, registry, presence
// tracker and message pipeline.
type Module struct {
	storeModule      *store.Module
	membershipModule *membership.Module
	config           Config

	dispatcher *dispatch.Dispatcher
	registry   *registry.Registry
	tracker    *presence.Tracker
	pipeline   *messaging.Pipeline

	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the realtime module.
func NewModule(storeModule *store.Module, membershipModule *membership.Module, config Config, logger types.Logger) *Module {
	if config.OutboxSize <= 0 {
		config.OutboxSize = dispatch.DefaultOutboxSize
	}
	if config.LifecycleTimeout <= 0 {
		config.LifecycleTimeout = DefaultConfig().LifecycleTimeout
	}
	return &Module{
		storeModule:      storeModule,
		membershipModule: membershipModule,
		config:           config,
		logger:           logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "realtime"
}

// Start wires the realtime components on top of the started store and
// membership modules.
func (m *Module) Start(_ context.Context) error {
	st := m.storeModule.Store()
	if st == nil {
		return fmt.Errorf("store module not started")
	}
	oracle := m.membershipModule.Oracle()
	if oracle == nil {
		return fmt.Errorf("membership module not started")
	}

	m.dispatcher = dispatch.New(m.logger)
	m.tracker = presence.New(st, m.dispatcher, m.logger)
	m.registry = registry.New(m.dispatcher, oracle, m.tracker, m.logger)
	m.pipeline = messaging.New(st, oracle, m.registry, m.dispatcher, m.logger)

	log.Printf("[realtime] Module started (outbox: %d)", m.config.OutboxSize)
	return nil
}

// Stop disconnects every connection while the store is still up, so users
// are persisted offline, then waits for the writers.
func (m *Module) Stop(ctx context.Context) error {
	if m.registry != nil {
		lctx, cancel := m.lifecycleContext(ctx)
		closed := m.registry.CloseAll(lctx)
		cancel()
		if closed > 0 {
			m.logger.Info("Closed connections on shutdown", "connections", closed)
		}
	}
	if m.dispatcher != nil {
		m.dispatcher.Close()
	}
	log.Println("[realtime] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.dispatcher == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections":    m.registry.ConnectionCount(),
			"users":          m.registry.ConnectedUsers(),
			"online":         m.tracker.OnlineCount(),
			"dropped_frames": m.dispatcher.Dropped(),
		},
	}
}

// RegisterServices registers the request-reply services used by the REST
// fallback.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceSendMessage,
		json.Unmarshal,
		json.Marshal,
		m.handleSendMessage,
	); err != nil {
		return fmt.Errorf("failed to register send-message service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceMarkSeen,
		json.Unmarshal,
		json.Marshal,
		m.handleMarkSeen,
	); err != nil {
		return fmt.Errorf("failed to register mark-seen service: %w", err)
	}

	log.Printf("[realtime] Registered services: %s, %s", ServiceSendMessage, ServiceMarkSeen)
	return nil
}

func (m *Module) handleSendMessage(ctx context.Context, req SendMessageRequest, _ *mono.Msg) (SendMessageResponse, error) {
	msg, err := m.pipeline.SendAs(ctx, req.SenderID, req.ChatID, req.Content)
	if err != nil {
		return SendMessageResponse{}, err
	}
	return SendMessageResponse{Message: msg}, nil
}

func (m *Module) handleMarkSeen(ctx context.Context, req MarkSeenRequest, _ *mono.Msg) (MarkSeenResponse, error) {
	msg, err := m.pipeline.SeenAs(ctx, req.UserID, req.MessageID)
	if err != nil {
		return MarkSeenResponse{}, err
	}
	return MarkSeenResponse{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		SeenBy:    msg.SeenBy,
	}, nil
}

// Pipeline returns the message pipeline. It is nil until Start has run.
func (m *Module) Pipeline() *messaging.Pipeline {
	return m.pipeline
}

// Tracker returns the presence tracker. It is nil until Start has run.
func (m *Module) Tracker() *presence.Tracker {
	return m.tracker
}
