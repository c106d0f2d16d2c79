package gateway

import (
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	userdomain "github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/modules/auth"
)

const (
	// UserContextKey is the key used to store user claims in the Fiber context.
	UserContextKey = "user"
)

// AuthMiddleware creates a middleware that validates bearer tokens.
func AuthMiddleware(authAdapter auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "Invalid authorization header format. Use: Bearer <token>")
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return unauthorized(c, "Token is required")
		}

		return authenticate(c, authAdapter, token)
	}
}

// WebSocketAuth authenticates a websocket handshake. Browsers cannot set
// headers on a websocket request, so the token may also come from the
// token query parameter.
func WebSocketAuth(authAdapter auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return unauthorized(c, "Token is required")
		}
		return authenticate(c, authAdapter, token)
	}
}

// UpgradeGuard rejects plain HTTP requests on the websocket endpoint.
func UpgradeGuard(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func authenticate(c *fiber.Ctx, authAdapter auth.AuthPort, token string) error {
	claims, err := authAdapter.ValidateToken(c.UserContext(), token)
	if err != nil {
		return unauthorized(c, "Invalid or expired token")
	}

	// Store claims in context for use in handlers
	c.Locals(UserContextKey, claims)
	return c.Next()
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: message,
	})
}

// claimsFrom returns the claims stored by AuthMiddleware.
func claimsFrom(c *fiber.Ctx) *userdomain.Claims {
	claims, _ := c.Locals(UserContextKey).(*userdomain.Claims)
	return claims
}
