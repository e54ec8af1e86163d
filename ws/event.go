// Package ws owns live socket connections: the registry of which user holds
// which connections, the per-conversation rooms those connections are
// subscribed to, and fan-out of committed events to them.
//
// Flow of a write:
//  1. REST handler → service → repository commits the change
//  2. the service hands the committed entity to a Broadcaster method
//  3. the Hub marshals the event once and queues it on every target
//     connection's send buffer
//  4. each Client's WritePump writes the frame to its socket
package ws

import "time"

// Event is the frame exchanged in both directions. Seq increases by one for
// every outbound event so clients can notice gaps.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → server ops.
const (
	OpHeartbeat = "heartbeat"
	OpTyping    = "typing"
	OpSetStatus = "setStatus"
)

// Server → client ops.
const (
	OpHeartbeatAck           = "heartbeatAck"
	OpNewMessage             = "newMessage"
	OpMessageUpdated         = "messageUpdated"
	OpMessageDeleted         = "messageDeleted"
	OpMessageReactionUpdated = "messageReactionUpdated"
	OpNewConversation        = "newConversation"
	OpMessagesRead           = "messagesRead"
	OpUserStatusChange       = "userStatusChange"
	OpUserTyping             = "userTyping"
)

// Sender identifies the connection an inbound op arrived on.
type Sender struct {
	ConnID   string
	UserID   string
	Username string
}

// TypingData is the payload of the client typing op.
type TypingData struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// SetStatusData is the payload of the client setStatus op.
type SetStatusData struct {
	Status string `json:"status"`
}

// UserTypingData is the userTyping payload relayed to a room.
type UserTypingData struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// StatusChangeData is the userStatusChange payload.
type StatusChangeData struct {
	UserID   string     `json:"userId"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"lastSeen"`
}
