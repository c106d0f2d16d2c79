package gateway

import (
	"errors"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"

	"github.com/example/realtime-chat/modules/directory"
	"github.com/example/realtime-chat/modules/messaging"
	"github.com/example/realtime-chat/modules/realtime"
)

// Handlers serves the REST fallback of the chat core.
type Handlers struct {
	chats    directory.ChatPort
	realtime realtime.RealtimePort
	logger   types.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(chats directory.ChatPort, rt realtime.RealtimePort, logger types.Logger) *Handlers {
	return &Handlers{
		chats:    chats,
		realtime: rt,
		logger:   logger,
	}
}

// ListChats handles GET /api/v1/chats.
func (h *Handlers) ListChats(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	chats, err := h.chats.ListChats(c.UserContext(), claims.UserID)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(ChatsResponse{Chats: chats, Total: len(chats)})
}

// CreateChat handles POST /api/v1/chats.
func (h *Handlers) CreateChat(c *fiber.Ctx) error {
	var body CreateChatBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(c)
	}

	chat, err := h.chats.CreateChat(c.UserContext(), directory.CreateChatRequest{
		CreatorID: claimsFrom(c).UserID,
		UserIDs:   body.UserIDs,
		IsGroup:   body.IsGroup,
		Name:      body.Name,
	})
	if err != nil {
		return h.handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(chat)
}

// CreateGroupChat handles POST /api/v1/chats/group.
func (h *Handlers) CreateGroupChat(c *fiber.Ctx) error {
	var body CreateGroupChatBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(c)
	}

	chat, err := h.chats.CreateGroupChat(c.UserContext(), directory.CreateGroupChatRequest{
		CreatorID: claimsFrom(c).UserID,
		Name:      body.Name,
		UserIDs:   body.UserIDs,
	})
	if err != nil {
		return h.handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(chat)
}

// StartDirectChat handles POST /api/v1/chats/direct. It answers 201 when
// the chat was created and 200 when it already existed.
func (h *Handlers) StartDirectChat(c *fiber.Ctx) error {
	var body StartDirectChatBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(c)
	}

	chat, created, err := h.chats.StartDirectChat(c.UserContext(), claimsFrom(c).UserID, body.UserID)
	if err != nil {
		return h.handleError(c, err)
	}
	if created {
		c.Status(fiber.StatusCreated)
	}
	return c.JSON(chat)
}

// GetChat handles GET /api/v1/chats/:id.
func (h *Handlers) GetChat(c *fiber.Ctx) error {
	chat, err := h.chats.GetChat(c.UserContext(), c.Params("id"), claimsFrom(c).UserID)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(chat)
}

// InviteToChat handles POST /api/v1/chats/:id/members.
func (h *Handlers) InviteToChat(c *fiber.Ctx) error {
	var body InviteBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(c)
	}

	chat, err := h.chats.InviteToChat(c.UserContext(), c.Params("id"), claimsFrom(c).UserID, body.UserID)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(chat)
}

// ListMessages handles GET /api/v1/chats/:id/messages.
func (h *Handlers) ListMessages(c *fiber.Ctx) error {
	chatID := c.Params("id")
	messages, err := h.chats.ListMessages(c.UserContext(), chatID, claimsFrom(c).UserID, c.QueryInt("limit", directory.DefaultMessageLimit))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(MessagesResponse{
		ChatID:   chatID,
		Messages: messages,
		Total:    len(messages),
	})
}

// SendMessage handles POST /api/v1/chats/:id/messages. Connected members
// receive the same events as for a websocket send.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	var body SendMessageBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(c)
	}

	msg, err := h.realtime.SendMessage(c.UserContext(), claimsFrom(c).UserID, c.Params("id"), body.Content)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkSeen handles POST /api/v1/messages/:id/seen.
func (h *Handlers) MarkSeen(c *fiber.Ctx) error {
	resp, err := h.realtime.MarkSeen(c.UserContext(), claimsFrom(c).UserID, c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(resp)
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "realtime-chat",
	})
}

// handleError maps directory and messaging errors to HTTP responses.
func (h *Handlers) handleError(c *fiber.Ctx, err error) error {
	status, code, message := fiber.StatusInternalServerError, "internal_error", "Internal server error"

	switch {
	case errors.Is(err, directory.ErrInvalidRequest),
		errors.Is(err, directory.ErrNotGroup),
		errors.Is(err, messaging.ErrInvalidContent):
		status, code, message = fiber.StatusBadRequest, "bad_request", errorText(err)
	case errors.Is(err, directory.ErrForbidden),
		errors.Is(err, messaging.ErrAuthorizationDenied):
		status, code, message = fiber.StatusForbidden, "forbidden", "Access to this chat is denied"
	case errors.Is(err, directory.ErrChatNotFound):
		status, code, message = fiber.StatusNotFound, "not_found", "Chat not found"
	case errors.Is(err, messaging.ErrNotFound):
		status, code, message = fiber.StatusNotFound, "not_found", "Not found"
	case errors.Is(err, directory.ErrAlreadyMember):
		status, code, message = fiber.StatusConflict, "conflict", "User is already a member"
	default:
		h.logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// errorText returns the sentinel text of a client error.
func errorText(err error) string {
	for _, sentinel := range []error{
		directory.ErrInvalidRequest,
		directory.ErrNotGroup,
		messaging.ErrInvalidContent,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: "Invalid request body",
	})
}
