package chat

import "time"

// Role is a member's role inside a chat.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// MessageType classifies message content.
type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeFile MessageType = "file"
)

// Chat is a direct (two member) or group conversation.
type Chat struct {
	ID        string       `gorm:"primaryKey;type:text" json:"id"`
	IsGroup   bool         `gorm:"not null;default:false" json:"isGroup"`
	Name      *string      `gorm:"type:text" json:"name,omitempty"`
	Members   []ChatMember `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// TableName returns the table name for the Chat entity.
func (Chat) TableName() string {
	return "chats"
}

// MemberIDs returns the user ids of the loaded members in join order.
func (c *Chat) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// HasMember reports whether userID is among the loaded members.
func (c *Chat) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// ChatMember links a user to a chat. (ChatID, UserID) is unique.
type ChatMember struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	ChatID   string    `gorm:"not null;type:text;uniqueIndex:idx_chat_members_pair" json:"chatId"`
	UserID   string    `gorm:"not null;type:text;uniqueIndex:idx_chat_members_pair;index" json:"userId"`
	Role     Role      `gorm:"not null;type:text;default:member" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

// TableName returns the table name for the ChatMember entity.
func (ChatMember) TableName() string {
	return "chat_members"
}

// Message is a persisted chat message. SeenBy is kept in the message_seen
// table and filled in by the store.
type Message struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	ChatID    string         `gorm:"not null;type:text;index:idx_messages_chat_created" json:"chatId"`
	SenderID  string         `gorm:"not null;type:text" json:"senderId"`
	Sender    *MessageSender `gorm:"-" json:"sender,omitempty"`
	Content   string         `gorm:"not null;type:text" json:"content"`
	Type      MessageType    `gorm:"not null;type:text;default:text" json:"type"`
	SeenBy    []string       `gorm:"-" json:"seenBy"`
	CreatedAt time.Time      `gorm:"index:idx_messages_chat_created" json:"createdAt"`
}

// TableName returns the table name for the Message entity.
func (Message) TableName() string {
	return "messages"
}

// HasSeen reports whether userID is in SeenBy.
func (m *Message) HasSeen(userID string) bool {
	for _, id := range m.SeenBy {
		if id == userID {
			return true
		}
	}
	return false
}

// MessageSender is the public profile attached to outgoing messages.
type MessageSender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessageSeen records that a user has seen a message. The auto-increment id
// preserves the order in which viewers were appended.
type MessageSeen struct {
	ID        uint      `gorm:"primaryKey"`
	MessageID string    `gorm:"not null;type:text;uniqueIndex:idx_message_seen_pair"`
	UserID    string    `gorm:"not null;type:text;uniqueIndex:idx_message_seen_pair"`
	SeenAt    time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for the MessageSeen entity.
func (MessageSeen) TableName() string {
	return "message_seen"
}

// LatestMessage is the sidebar summary sent with chat:updated.
type LatestMessage struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
	Sender    *MessageSender `json:"sender,omitempty"`
}

// Summary returns the sidebar view of the message.
func (m *Message) Summary() LatestMessage {
	return LatestMessage{
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Sender:    m.Sender,
	}
}
