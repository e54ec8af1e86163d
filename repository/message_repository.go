package repository

import (
	"context"
	"time"

	"github.com/akinalp/parley/models"
)

// MessageRepository owns the per-conversation message log and keeps the
// conversation's last-message cache and unread counters in step with it.
type MessageRepository interface {
	// CreateWithDelivery appends msg and, in the same transaction, marks it
	// read by the sender, sets it as the conversation's last message and
	// increments unread_count for every other participant. It fails with
	// ErrNotFound, ErrAccessDenied (sender not a participant) or
	// ErrInvalidReference (reply target missing from the conversation).
	// The returned message has Sender, ReplyTo and ReadBy populated.
	CreateWithDelivery(ctx context.Context, msg *models.Message) (*models.Message, error)
	GetByID(ctx context.Context, id string) (*models.Message, error)
	// ListByConversation returns the page that starts offset messages back
	// from the newest, in chronological order.
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error)
	// UpdateContent sets content, edited and updated_at. When the message is
	// the conversation's last message the cached text follows.
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error
	// DeleteAndRecompute removes msg. If it was the conversation's last
	// message the cache is re-derived from the remaining log; recomputed
	// reports that case and last is the new summary (nil for an empty log).
	DeleteAndRecompute(ctx context.Context, msg *models.Message) (last *models.LastMessage, recomputed bool, err error)
	Count(ctx context.Context) (int, error)
}
