package membership

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"

	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/store"
)

// Config holds membership module configuration.
type Config struct {
	// CacheTTL bounds how long a cached answer may be served.
	CacheTTL time.Duration
	// CachePrefix is the Redis key prefix.
	CachePrefix string
}

// DefaultConfig returns the default membership configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL:    30 * time.Second,
		CachePrefix: "membership:",
	}
}

// Module provides the membership oracle and keeps its cache in step with
// chat membership events.
type Module struct {
	storeModule *store.Module
	redisClient *redis.Client
	cache       *RedisCache
	oracle      *Oracle
	config      Config
	logger      types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the membership module. redisClient may be nil, in which
// case every check goes to the store.
func NewModule(storeModule *store.Module, redisClient *redis.Client, config Config, logger types.Logger) *Module {
	return &Module{
		storeModule: storeModule,
		redisClient: redisClient,
		config:      config,
		logger:      logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "membership"
}

// Start builds the oracle on top of the started store.
func (m *Module) Start(ctx context.Context) error {
	st := m.storeModule.Store()
	if st == nil {
		return fmt.Errorf("store module not started")
	}

	var cache Cache
	if m.redisClient != nil {
		rc := NewRedisCache(m.redisClient, m.config.CachePrefix, m.config.CacheTTL)
		if err := rc.Ping(ctx); err != nil {
			m.logger.Warn("Redis unavailable, membership cache disabled", "error", err)
		} else {
			m.cache = rc
			cache = rc
		}
	}

	m.oracle = NewOracle(st, cache, m.logger)
	log.Printf("[membership] Module started (cache: %v, ttl: %s)", m.cache != nil, m.config.CacheTTL)
	return nil
}

// Stop shuts down the module. The Redis client is owned by main.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[membership] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.oracle == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	details := map[string]any{"cache_enabled": m.cache != nil}
	if m.cache != nil {
		details["cache_stats"] = m.cache.GetStats()
		if err := m.cache.Ping(ctx); err != nil {
			// Lookups fall through to the store, so the module stays healthy.
			details["cache_error"] = err.Error()
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

// RegisterEventConsumers subscribes to membership changes.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ChatCreatedV1, m.handleChatCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register ChatCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ChatMembersChangedV1, m.handleMembersChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register ChatMembersChanged consumer: %w", err)
	}

	log.Println("[membership] Registered event consumers: ChatCreated, ChatMembersChanged")
	return nil
}

func (m *Module) handleChatCreated(ctx context.Context, event events.ChatCreatedEvent, _ *mono.Msg) error {
	if m.oracle != nil {
		m.oracle.Invalidate(ctx, event.ChatID)
	}
	return nil
}

func (m *Module) handleMembersChanged(ctx context.Context, event events.ChatMembersChangedEvent, _ *mono.Msg) error {
	if m.oracle != nil {
		m.oracle.Invalidate(ctx, event.ChatID)
		m.logger.Debug("Membership cache invalidated", "chatID", event.ChatID, "users", event.UserIDs)
	}
	return nil
}

// Oracle returns the membership oracle. It is nil until Start has run.
func (m *Module) Oracle() *Oracle {
	return m.oracle
}
