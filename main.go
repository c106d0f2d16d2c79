package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"

	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/directory"
	"github.com/example/realtime-chat/modules/gateway"
	"github.com/example/realtime-chat/modules/membership"
	"github.com/example/realtime-chat/modules/ratelimit"
	"github.com/example/realtime-chat/modules/realtime"
	"github.com/example/realtime-chat/modules/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration from environment
	port := getEnvInt("PORT", 3000)
	dbPath := getEnv("CHAT_DB_PATH", "chat.db")
	redisAddr := getEnv("REDIS_ADDR", "")

	membershipConfig := membership.DefaultConfig()
	membershipConfig.CacheTTL = getEnvDuration("MEMBERSHIP_CACHE_TTL", membershipConfig.CacheTTL)

	realtimeConfig := realtime.DefaultConfig()
	realtimeConfig.OutboxSize = getEnvInt("OUTBOX_SIZE", realtimeConfig.OutboxSize)

	wsRate := ratelimit.Config{
		Limit:  getEnvInt("WS_RATE_LIMIT", ratelimit.DefaultConfig().Limit),
		Window: getEnvDuration("WS_RATE_WINDOW", ratelimit.DefaultConfig().Window),
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.Addr = ":" + strconv.Itoa(port)
	gatewayConfig.AllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", gatewayConfig.AllowedOrigins)
	gatewayConfig.APIRateLimit = getEnvInt("API_RATE_LIMIT", gatewayConfig.APIRateLimit)
	gatewayConfig.APIRateWindow = getEnvDuration("API_RATE_WINDOW", gatewayConfig.APIRateWindow)
	gatewayConfig.FrameTimeout = getEnvDuration("FRAME_TIMEOUT", gatewayConfig.FrameTimeout)
	gatewayConfig.RedisAddr = redisAddr

	log.Println("=== Realtime Chat ===")
	log.Printf("Database: %s", dbPath)
	log.Printf("HTTP Port: %d", port)

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Redis is optional: without it membership checks go to the store and
	// rate limits are kept in memory.
	var redisClient *redis.Client
	var wsLimiter ratelimit.Limiter = ratelimit.NewTokenBucket(wsRate)
	if redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisAddr})
		wsLimiter = ratelimit.NewRedisLimiter(redisClient, wsRate, "ratelimit:ws:")
		log.Printf("Redis: %s", redisAddr)
	}

	// Create modules
	storeModule := store.NewModule(dbPath)
	membershipModule := membership.NewModule(storeModule, redisClient, membershipConfig, app.Logger().WithModule("membership"))
	authModule := auth.NewModule(storeModule, auth.LoadJWTConfig(), app.Logger().WithModule("auth"))
	directoryModule := directory.NewModule(storeModule, app.Logger().WithModule("directory"))
	realtimeModule := realtime.NewModule(storeModule, membershipModule, realtimeConfig, app.Logger().WithModule("realtime"))
	gatewayModule := gateway.NewModule(gatewayConfig, realtimeModule, wsLimiter, app.Logger().WithModule("gateway"))

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - store: SQLite persistence shared by every module below
	// - membership: membership oracle (EventConsumerModule for cache invalidation)
	// - auth: token validation service
	// - directory: chat directory services + event emitter
	// - realtime: connections, presence and the message pipeline
	// - gateway: Fiber HTTP/WebSocket edge (depends on auth, directory, realtime)
	app.Register(storeModule)
	app.Register(membershipModule)
	app.Register(authModule)
	app.Register(directoryModule)
	app.Register(realtimeModule)
	app.Register(gatewayModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(port, redisAddr != "")

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				err := app.Stop(ctx)
				if redisClient != nil {
					if cerr := redisClient.Close(); cerr != nil {
						log.Printf("Error closing Redis client: %v", cerr)
					}
				}
				return err
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}

func printStartupInfo(port int, redisEnabled bool) {
	backend := "in-memory"
	if redisEnabled {
		backend = "Redis"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("Rate limits and membership cache: %s", backend)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", port)
	log.Println("  GET    /health                      - Health check")
	log.Println("  GET    /api/v1/chats                - List my chats")
	log.Println("  POST   /api/v1/chats                - Create a chat")
	log.Println("  POST   /api/v1/chats/group          - Create a group chat")
	log.Println("  POST   /api/v1/chats/direct         - Start a direct chat")
	log.Println("  GET    /api/v1/chats/:id            - Get chat details")
	log.Println("  POST   /api/v1/chats/:id/members    - Invite a user")
	log.Println("  GET    /api/v1/chats/:id/messages   - Message history")
	log.Println("  POST   /api/v1/chats/:id/messages   - Send a message")
	log.Println("  POST   /api/v1/messages/:id/seen    - Mark a message as seen")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%d/ws?token=<jwt>):", port)
	log.Println("  Inbound:  room:join, room:leave, typing:start, typing:stop, message:send, message:seen")
	log.Println("  Outbound: connected, error, user:presence, chat:updated, message:receive, message:updated,")
	log.Println("            typing:started, typing:stopped")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
