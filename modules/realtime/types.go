package realtime

import (
	domain "github.com/example/realtime-chat/domain/chat"
)

// Service names.
const (
	ServiceSendMessage = "send-message"
	ServiceMarkSeen    = "mark-seen"
)

// SendMessageRequest asks to send a message on behalf of a user.
type SendMessageRequest struct {
	ChatID   string `json:"chat_id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

// SendMessageResponse carries the stored message.
type SendMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// MarkSeenRequest asks to record a seen receipt.
type MarkSeenRequest struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
}

// MarkSeenResponse carries the message's viewers after the receipt.
type MarkSeenResponse struct {
	MessageID string   `json:"message_id"`
	ChatID    string   `json:"chat_id"`
	SeenBy    []string `json:"seen_by"`
}

// ConnectedPayload acknowledges a websocket handshake.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
}
