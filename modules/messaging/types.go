package messaging

import (
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
)

// MaxContentLength is the largest message body accepted, in bytes.
const MaxContentLength = 4096

// Inbound payloads.

// SendPayload is the data of a message:send frame.
type SendPayload struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

// SeenPayload is the data of a message:seen frame.
type SeenPayload struct {
	MessageID string `json:"messageId"`
}

// TypingStartPayload is the data of a typing:start frame.
type TypingStartPayload struct {
	ChatID string `json:"chatId"`
	Name   string `json:"name"`
}

// TypingStopPayload is the data of a typing:stop frame.
type TypingStopPayload struct {
	ChatID string `json:"chatId"`
}

// Outbound payloads.

// ChatUpdatedPayload is sent on each member's personal channel after a send.
type ChatUpdatedPayload struct {
	ChatID        string               `json:"chatId"`
	LatestMessage domain.LatestMessage `json:"latestMessage"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// MessageUpdatedPayload is sent on the chat room after a seen receipt.
type MessageUpdatedPayload struct {
	MessageID string   `json:"messageId"`
	SeenBy    []string `json:"seenBy"`
}

// TypingPayload is sent on the chat room for typing indicators.
type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}
