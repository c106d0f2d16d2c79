package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/dispatch"
	"github.com/example/realtime-chat/modules/messaging"
)

// Session is one authenticated connection. Handle must be called from a
// single goroutine, the connection's reader.
type Session struct {
	module *Module
	client *dispatch.Client
}

// Connect registers a new connection for userID and acknowledges it with a
// connected event. Frames for the connection are written through w.
func (m *Module) Connect(ctx context.Context, connID, userID string, w dispatch.Writer) (*Session, error) {
	if m.registry == nil {
		return nil, fmt.Errorf("realtime module not started")
	}

	client := dispatch.NewClient(connID, userID, w, m.config.OutboxSize)

	lctx, cancel := m.lifecycleContext(ctx)
	defer cancel()
	m.registry.OnConnect(lctx, client)

	s := &Session{module: m, client: client}
	s.emit(events.WSConnected, ConnectedPayload{ConnectionID: connID, UserID: userID})
	return s, nil
}

// ID returns the connection id.
func (s *Session) ID() string {
	return s.client.ID()
}

// UserID returns the authenticated user of the session.
func (s *Session) UserID() string {
	return s.client.UserID()
}

// Done is closed once the session was closed and every frame queued for
// it has been written.
func (s *Session) Done() <-chan struct{} {
	return s.client.Done()
}

// Handle decodes one inbound frame and runs the matching operation.
func (s *Session) Handle(ctx context.Context, data []byte) {
	var frame dispatch.Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
		s.Reject(events.ReasonInvalidFormat)
		return
	}

	p := s.module.pipeline
	switch frame.Event {
	case events.WSRoomJoin:
		var chatID string
		if !s.decode(frame.Data, &chatID) {
			return
		}
		p.JoinRoom(ctx, s.client, chatID)

	case events.WSRoomLeave:
		var chatID string
		if !s.decode(frame.Data, &chatID) {
			return
		}
		p.LeaveRoom(s.client, chatID)

	case events.WSTypingStart:
		var req messaging.TypingStartPayload
		if !s.decode(frame.Data, &req) {
			return
		}
		p.TypingStart(ctx, s.client, req.ChatID, req.Name)

	case events.WSTypingStop:
		var req messaging.TypingStopPayload
		if !s.decode(frame.Data, &req) {
			return
		}
		p.TypingStop(ctx, s.client, req.ChatID)

	case events.WSMessageSeen:
		var req messaging.SeenPayload
		if !s.decode(frame.Data, &req) {
			return
		}
		if req.MessageID == "" {
			s.Reject(events.ReasonInvalidMessageID)
			return
		}
		p.Seen(ctx, s.client, req.MessageID)

	case events.WSMessageSend:
		var req messaging.SendPayload
		if !s.decode(frame.Data, &req) {
			return
		}
		if req.ChatID == "" {
			s.Reject(events.ReasonInvalidChatID)
			return
		}
		p.Send(ctx, s.client, req.ChatID, req.Content)

	default:
		s.Reject(events.ReasonUnknownEvent + frame.Event)
	}
}

// Reject sends an error event with reason to this connection only.
func (s *Session) Reject(reason string) {
	s.emit(events.WSError, reason)
}

// Close unregisters the connection. Every subscription is gone when Close
// returns; the presence transition runs on a context detached from ctx's
// cancellation.
func (s *Session) Close(ctx context.Context) {
	lctx, cancel := s.module.lifecycleContext(ctx)
	defer cancel()
	s.module.registry.OnDisconnect(lctx, s.client)
}

func (s *Session) decode(raw json.RawMessage, v any) bool {
	if len(raw) == 0 || json.Unmarshal(raw, v) != nil {
		s.Reject(events.ReasonInvalidFormat)
		return false
	}
	return true
}

func (s *Session) emit(event string, payload any) {
	if err := s.module.dispatcher.Send(s.client, event, payload); err != nil {
		s.module.logger.Error("Failed to send to connection", "connID", s.client.ID(), "event", event, "error", err)
	}
}

func (m *Module) lifecycleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.config.LifecycleTimeout)
}
