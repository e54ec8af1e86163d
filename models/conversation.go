package models

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/akinalp/parley/pkg/validate"
)

// ConversationKind distinguishes two-party chats from named groups.
type ConversationKind string

const (
	ConversationPrivate ConversationKind = "private"
	ConversationGroup   ConversationKind = "group"
)

// LastMessage is the denormalized summary of a conversation's newest message.
// It is maintained by the message write path, never derived on read.
type LastMessage struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	SenderID       string    `json:"senderId"`
	SenderUsername string    `json:"senderUsername,omitempty"`
	At             time.Time `json:"at"`
}

// Conversation is a private or group thread.
//
// UnreadCounts only has keys for participants whose counter has been touched
// by a delivery or a read-mark.
type Conversation struct {
	ID             string           `json:"id"`
	Kind           ConversationKind `json:"type"`
	Name           string           `json:"name,omitempty"`
	CreatedBy      string           `json:"createdBy"`
	ParticipantIDs []string         `json:"participantIds"`
	Participants   []UserSummary    `json:"participants"`
	LastMessage    *LastMessage     `json:"lastMessage"`
	UnreadCounts   map[string]int   `json:"unreadCount"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// HasParticipant reports whether userID belongs to c.
func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.ParticipantIDs, userID)
}

// PairKey is the canonical key of a private conversation: the two user ids
// in lexical order joined by ':'. A unique index on it makes private
// creation race-free.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// CreateConversationRequest is the POST /api/conversations body.
// Participants excludes the caller; the service adds it.
type CreateConversationRequest struct {
	Type         ConversationKind `json:"type" validate:"omitempty,oneof=private group"`
	Participants []string         `json:"participants" validate:"required,min=1,dive,required"`
	Name         string           `json:"name" validate:"max=64"`
}

var (
	errGroupName      = errors.New("name is required for group conversations")
	errPrivateMembers = errors.New("a private conversation needs exactly one other participant")
	errTooFewMembers  = errors.New("a conversation needs at least one participant besides the creator")
)

// Validate defaults Type to private and normalizes the participant list.
func (r *CreateConversationRequest) Validate() error {
	if r.Type == "" {
		r.Type = ConversationPrivate
	}
	r.Name = strings.TrimSpace(r.Name)
	for i := range r.Participants {
		r.Participants[i] = strings.TrimSpace(r.Participants[i])
	}
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Type == ConversationGroup && r.Name == "" {
		return errGroupName
	}
	return nil
}

// Members returns the deduplicated participant set including creatorID,
// creator first.
func (r *CreateConversationRequest) Members(creatorID string) []string {
	out := []string{creatorID}
	for _, id := range r.Participants {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// ValidateMembers applies the kind-specific size rule to a deduplicated set.
func (r *CreateConversationRequest) ValidateMembers(members []string) error {
	if r.Type == ConversationPrivate && len(members) != 2 {
		return errPrivateMembers
	}
	if len(members) < 2 {
		return errTooFewMembers
	}
	return nil
}

// ReadReceipt is the messagesRead event payload.
type ReadReceipt struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}
