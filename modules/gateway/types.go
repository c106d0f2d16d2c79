package gateway

import (
	domain "github.com/example/realtime-chat/domain/chat"
)

// CreateChatBody is the body of POST /api/v1/chats.
type CreateChatBody struct {
	UserIDs []string `json:"userIds"`
	IsGroup bool     `json:"isGroup"`
	Name    string   `json:"name,omitempty"`
}

// CreateGroupChatBody is the body of POST /api/v1/chats/group.
type CreateGroupChatBody struct {
	Name    string   `json:"name"`
	UserIDs []string `json:"userIds"`
}

// StartDirectChatBody is the body of POST /api/v1/chats/direct.
type StartDirectChatBody struct {
	UserID string `json:"userId"`
}

// InviteBody is the body of POST /api/v1/chats/:id/members.
type InviteBody struct {
	UserID string `json:"userId"`
}

// SendMessageBody is the body of POST /api/v1/chats/:id/messages.
type SendMessageBody struct {
	Content string `json:"content"`
}

// ChatsResponse lists the chats of the caller.
type ChatsResponse struct {
	Chats []domain.Chat `json:"chats"`
	Total int           `json:"total"`
}

// MessagesResponse is a page of chat history.
type MessagesResponse struct {
	ChatID   string           `json:"chatId"`
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
