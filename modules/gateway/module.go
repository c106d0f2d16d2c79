// Package gateway is the HTTP edge of the chat core: the authenticated
// websocket endpoint and the REST fallback.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberredis "github.com/gofiber/storage/redis/v3"
	nanoid "github.com/jaevor/go-nanoid"

	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/directory"
	"github.com/example/realtime-chat/modules/ratelimit"
	"github.com/example/realtime-chat/modules/realtime"
)

// Config holds gateway configuration.
type Config struct {
	Addr           string
	AllowedOrigins string
	APIRateLimit   int
	APIRateWindow  time.Duration
	FrameTimeout   time.Duration
	// RedisAddr, when set, stores REST rate limit counters in Redis.
	RedisAddr string
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":3000",
		AllowedOrigins: "http://localhost:3000,http://localhost:8080",
		APIRateLimit:   100,
		APIRateWindow:  time.Minute,
		FrameTimeout:   5 * time.Second,
	}
}

// Module serves the websocket endpoint and the REST API.
type Module struct {
	config         Config
	realtimeModule *realtime.Module
	wsLimiter      ratelimit.Limiter

	authAdapter     auth.AuthPort
	chatAdapter     directory.ChatPort
	realtimeAdapter realtime.RealtimePort

	app     *fiber.App
	storage *fiberredis.Storage
	newID   func() string
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the gateway module. Connections are registered with
// realtimeModule; inbound frames are throttled by wsLimiter.
func NewModule(config Config, realtimeModule *realtime.Module, wsLimiter ratelimit.Limiter, logger types.Logger) *Module {
	if wsLimiter == nil {
		wsLimiter = ratelimit.NewTokenBucket(ratelimit.DefaultConfig())
	}
	if config.FrameTimeout <= 0 {
		config.FrameTimeout = DefaultConfig().FrameTimeout
	}
	return &Module{
		config:         config,
		realtimeModule: realtimeModule,
		wsLimiter:      wsLimiter,
		logger:         logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "gateway"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"auth", "directory", "realtime"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authAdapter = auth.NewAuthAdapter(container)
	case "directory":
		m.chatAdapter = directory.NewChatAdapter(container)
	case "realtime":
		m.realtimeAdapter = realtime.NewRealtimeAdapter(container)
	}
}

// Start initializes and starts the HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.authAdapter == nil || m.chatAdapter == nil || m.realtimeAdapter == nil {
		return fmt.Errorf("gateway dependencies not set")
	}
	if m.realtimeModule == nil {
		return fmt.Errorf("realtime module is required")
	}

	newID, err := nanoid.Standard(21)
	if err != nil {
		return fmt.Errorf("failed to create connection id generator: %w", err)
	}
	m.newID = newID

	if m.config.RedisAddr != "" {
		host, port := parseRedisAddr(m.config.RedisAddr)
		m.storage = fiberredis.New(fiberredis.Config{
			Host:     host,
			Port:     port,
			PoolSize: 50,
		})
		log.Printf("[gateway] REST rate limits stored in Redis at %s", m.config.RedisAddr)
	}

	m.app = m.newApp()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.config.Addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("Gateway started", "addr", m.config.Addr)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	if m.storage != nil {
		if err := m.storage.Close(); err != nil {
			log.Printf("[gateway] Error closing Redis storage: %v", err)
		}
	}
	m.logger.Info("Gateway stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr":          m.config.Addr,
			"redis_storage": m.storage != nil,
		},
	}
}

// newApp builds the Fiber app with every route registered.
func (m *Module) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Realtime Chat",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.config.AllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	handlers := NewHandlers(m.chatAdapter, m.realtimeAdapter, m.logger)
	ws := &wsHandler{
		realtime:     m.realtimeModule,
		limiter:      m.wsLimiter,
		newID:        m.newID,
		frameTimeout: m.config.FrameTimeout,
		logger:       m.logger,
	}

	app.Get("/health", handlers.HealthCheck)

	app.Use("/ws", UpgradeGuard, WebSocketAuth(m.authAdapter))
	app.Get("/ws", websocket.New(ws.HandleWebSocket))

	api := app.Group("/api/v1", AuthMiddleware(m.authAdapter), m.apiLimiter())
	api.Get("/chats", handlers.ListChats)
	api.Post("/chats", handlers.CreateChat)
	api.Post("/chats/group", handlers.CreateGroupChat)
	api.Post("/chats/direct", handlers.StartDirectChat)
	api.Get("/chats/:id", handlers.GetChat)
	api.Post("/chats/:id/members", handlers.InviteToChat)
	api.Get("/chats/:id/messages", handlers.ListMessages)
	api.Post("/chats/:id/messages", handlers.SendMessage)
	api.Post("/messages/:id/seen", handlers.MarkSeen)

	return app
}

// apiLimiter limits REST calls per authenticated user.
func (m *Module) apiLimiter() fiber.Handler {
	config := limiter.Config{
		Max:        m.config.APIRateLimit,
		Expiration: m.config.APIRateWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			if claims := claimsFrom(c); claims != nil {
				return "user:" + claims.UserID
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:   "rate_limited",
				Message: "Too many requests",
			})
		},
	}
	if m.storage != nil {
		config.Storage = m.storage
	}
	return limiter.New(config)
}

// errorHandler handles errors globally.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "message", message, "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// parseRedisAddr parses "host:port" into host and port.
// Returns defaults (127.0.0.1:6379) for invalid or missing values.
func parseRedisAddr(addr string) (string, int) {
	const defaultHost = "127.0.0.1"
	const defaultPort = 6379

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultHost, defaultPort
	}
	if host == "" {
		host = defaultHost
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = defaultPort
	}
	return host, port
}
