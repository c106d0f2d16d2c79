package events

// Inbound websocket events (client to server).
const (
	WSRoomJoin    = "room:join"
	WSRoomLeave   = "room:leave"
	WSTypingStart = "typing:start"
	WSTypingStop  = "typing:stop"
	WSMessageSeen = "message:seen"
	WSMessageSend = "message:send"
)

// Outbound websocket events (server to client).
const (
	WSConnected      = "connected"
	WSError          = "error"
	WSUserPresence   = "user:presence"
	WSChatUpdated    = "chat:updated"
	WSMessageReceive = "message:receive"
	WSMessageUpdated = "message:updated"
	WSTypingStarted  = "typing:started"
	WSTypingStopped  = "typing:stopped"
)

// Reasons carried by outbound error events.
const (
	ReasonNotRoomMember    = "Unauthorized: not a room member"
	ReasonCannotSend       = "Unauthorized: cannot send to this chat"
	ReasonChatNotFound     = "Chat not found"
	ReasonSendFailed       = "Failed to send message"
	ReasonInvalidContent   = "Invalid message content"
	ReasonInvalidFormat    = "Invalid message format"
	ReasonUnknownEvent     = "Unknown event: "
	ReasonRateLimited      = "Rate limit exceeded"
	ReasonInvalidChatID    = "chatId is required"
	ReasonInvalidMessageID = "messageId is required"
)
