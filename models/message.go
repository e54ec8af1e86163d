package models

import (
	"errors"
	"strings"
	"time"

	"github.com/akinalp/parley/pkg/validate"
)

// MessageType is the message payload kind.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// MessageSender is the sender projection joined onto every fetched message.
type MessageSender struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// ReplyPreview resolves a message's reply reference. When the target has been
// deleted only ID and Unavailable are set.
type ReplyPreview struct {
	ID             string `json:"id"`
	Content        string `json:"content,omitempty"`
	SenderID       string `json:"senderId,omitempty"`
	SenderUsername string `json:"senderUsername,omitempty"`
	Unavailable    bool   `json:"unavailable,omitempty"`
}

// Reactions maps user id to the single emoji that user reacted with.
type Reactions map[string]string

// Message is one entry in a conversation's log.
//
// ReadBy always contains SenderID. Sender and ReplyTo are filled by the
// repository joins.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Sender         *MessageSender `json:"sender,omitempty"`
	Content        string         `json:"content"`
	Type           MessageType    `json:"type"`
	FileURL        *string        `json:"fileUrl,omitempty"`
	ReplyToID      *string        `json:"replyToId,omitempty"`
	ReplyTo        *ReplyPreview  `json:"replyTo,omitempty"`
	Forwarded      bool           `json:"forwarded"`
	Edited         bool           `json:"edited"`
	ReadBy         []string       `json:"readBy"`
	Reactions      Reactions      `json:"reactions"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Summary builds the conversation's last-message cache entry for m.
func (m *Message) Summary() LastMessage {
	lm := LastMessage{
		ID:       m.ID,
		Text:     m.Content,
		SenderID: m.SenderID,
		At:       m.CreatedAt,
	}
	if m.Sender != nil {
		lm.SenderUsername = m.Sender.Username
	}
	return lm
}

// SendMessageRequest is the POST /api/messages body.
type SendMessageRequest struct {
	ConversationID string      `json:"conversationId" validate:"required"`
	Content        string      `json:"content" validate:"notblank,max=4000"`
	Type           MessageType `json:"type" validate:"omitempty,oneof=text image"`
	FileURL        *string     `json:"fileUrl" validate:"omitempty,url"`
	ReplyTo        *string     `json:"replyTo"`
	Forwarded      bool        `json:"forwarded"`
}

var errImageNeedsFile = errors.New("fileUrl is required for image messages")

// Validate trims content, defaults Type to text and drops an empty replyTo.
func (r *SendMessageRequest) Validate() error {
	r.ConversationID = strings.TrimSpace(r.ConversationID)
	r.Content = strings.TrimSpace(r.Content)
	if r.Type == "" {
		r.Type = MessageText
	}
	if r.ReplyTo != nil && strings.TrimSpace(*r.ReplyTo) == "" {
		r.ReplyTo = nil
	}
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Type == MessageImage && r.FileURL == nil {
		return errImageNeedsFile
	}
	return nil
}

// EditMessageRequest is the PATCH /api/messages/{id} body.
type EditMessageRequest struct {
	Content string `json:"content" validate:"notblank,max=4000"`
}

func (r *EditMessageRequest) Validate() error {
	r.Content = strings.TrimSpace(r.Content)
	return validate.Struct(r)
}

// ReactRequest is the PATCH /api/messages/{id}/react body. Any non-blank
// token of up to 32 characters is accepted as an emoji.
type ReactRequest struct {
	Emoji string `json:"emoji" validate:"notblank,max=32"`
}

func (r *ReactRequest) Validate() error {
	r.Emoji = strings.TrimSpace(r.Emoji)
	return validate.Struct(r)
}

// ReactionResult is the outcome of a reaction toggle and doubles as the
// messageReactionUpdated payload. Emoji is nil when the toggle removed the
// caller's reaction.
type ReactionResult struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	Reactions      Reactions `json:"reactions"`
	UserID         string    `json:"userId"`
	Emoji          *string   `json:"emoji"`
	Added          bool      `json:"-"`
}

// MessageDeleted is the messageDeleted payload. LastMessage is set when the
// deleted message was the conversation's last one and another remains.
type MessageDeleted struct {
	MessageID      string       `json:"messageId"`
	ConversationID string       `json:"conversationId"`
	LastMessage    *LastMessage `json:"lastMessage,omitempty"`
}

// MessageListParams is the paging window for a message fetch.
type MessageListParams struct {
	Limit  int
	Offset int
}

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
)

// Normalize applies defaults and clamps.
func (p *MessageListParams) Normalize() {
	if p.Limit <= 0 {
		p.Limit = DefaultMessageLimit
	}
	if p.Limit > MaxMessageLimit {
		p.Limit = MaxMessageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}
