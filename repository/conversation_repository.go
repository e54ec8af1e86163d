package repository

import (
	"context"

	"github.com/akinalp/parley/models"
)

// ConversationRepository persists conversations, their participant sets and
// the per-participant unread counters.
type ConversationRepository interface {
	// CreatePrivate inserts conv as the private conversation between a and b
	// unless one already exists for the pair. In both cases conv is
	// overwritten with the stored conversation; created reports which path
	// was taken. The pair check and the insert are a single statement.
	CreatePrivate(ctx context.Context, conv *models.Conversation, a, b string) (created bool, err error)
	// CreateGroup inserts conv with conv.ParticipantIDs as members.
	CreateGroup(ctx context.Context, conv *models.Conversation) error
	// GetByID returns the conversation with participants, unread counts and
	// last message populated.
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	// ListForUser returns userID's conversations, newest activity first,
	// never-used conversations last.
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	ListIDsForUser(ctx context.Context, userID string) ([]string, error)
	ParticipantIDs(ctx context.Context, conversationID string) ([]string, error)
	Count(ctx context.Context) (int, error)
}
