package gateway

import (
	"context"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"

	userdomain "github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/dispatch"
	"github.com/example/realtime-chat/modules/ratelimit"
	"github.com/example/realtime-chat/modules/realtime"
)

// frameConn is the part of a websocket connection the read loop uses.
type frameConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// wsHandler runs one read loop per websocket connection.
type wsHandler struct {
	realtime     *realtime.Module
	limiter      ratelimit.Limiter
	newID        func() string
	frameTimeout time.Duration
	logger       types.Logger
}

// HandleWebSocket serves a connection authenticated by WebSocketAuth.
func (h *wsHandler) HandleWebSocket(c *websocket.Conn) {
	claims, ok := c.Locals(UserContextKey).(*userdomain.Claims)
	if !ok || claims == nil {
		c.Close()
		return
	}
	h.serve(c, claims.UserID)
}

func (h *wsHandler) serve(conn frameConn, userID string) {
	ctx := context.Background()
	connID := h.newID()

	writer := dispatch.WriterFunc(func(data []byte) error {
		return conn.WriteMessage(websocket.TextMessage, data)
	})
	session, err := h.realtime.Connect(ctx, connID, userID, writer)
	if err != nil {
		h.logger.Error("Failed to register connection", "connID", connID, "userID", userID, "error", err)
		conn.Close()
		return
	}

	h.logger.Info("WebSocket connected", "connID", connID, "userID", userID)

	defer func() {
		session.Close(ctx)
		if f, ok := h.limiter.(interface{ Forget(key string) }); ok {
			f.Forget(connID)
		}
		// Let queued frames reach the socket before closing it.
		select {
		case <-session.Done():
		case <-time.After(h.frameTimeout):
		}
		conn.Close()
		// The conn is pooled and reused once this handler returns; the
		// writer must be finished by then. Writes on a closed conn fail fast.
		<-session.Done()
		h.logger.Info("WebSocket disconnected", "connID", connID, "userID", userID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", "connID", connID, "error", err)
			}
			return
		}

		if !h.allow(ctx, connID) {
			session.Reject(events.ReasonRateLimited)
			continue
		}
		h.handleFrame(session, data)
	}
}

// allow fails open when the limiter itself is unavailable.
func (h *wsHandler) allow(ctx context.Context, connID string) bool {
	ok, err := h.limiter.Allow(ctx, connID)
	if err != nil {
		h.logger.Warn("Rate limiter unavailable", "connID", connID, "error", err)
		return true
	}
	return ok
}

func (h *wsHandler) handleFrame(session *realtime.Session, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), h.frameTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic while handling frame", "connID", session.ID(), "panic", r)
		}
	}()

	session.Handle(ctx, data)
}
