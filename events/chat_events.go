package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// ChatCreatedEvent is emitted when a chat is created.
type ChatCreatedEvent struct {
	ChatID    string    `json:"chat_id"`
	IsGroup   bool      `json:"is_group"`
	Name      string    `json:"name,omitempty"`
	MemberIDs []string  `json:"member_ids"`
	CreatedBy string    `json:"created_by"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMembersChangedEvent is emitted when users are added to an existing chat.
type ChatMembersChangedEvent struct {
	ChatID    string    `json:"chat_id"`
	UserIDs   []string  `json:"user_ids"`
	ChangedBy string    `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	ChatCreatedV1 = helper.EventDefinition[ChatCreatedEvent](
		"chat",
		"ChatCreated",
		"v1",
	)

	ChatMembersChangedV1 = helper.EventDefinition[ChatMembersChangedEvent](
		"chat",
		"ChatMembersChanged",
		"v1",
	)
)
