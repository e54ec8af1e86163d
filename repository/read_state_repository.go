package repository

import (
	"context"
	"time"
)

// ReadStateRepository tracks per-message read receipts and resets the
// per-participant unread counter.
type ReadStateRepository interface {
	// MarkConversationRead adds userID to the readers of every message in
	// the conversation it did not send and sets its unread counter to 0, in
	// one transaction. It is idempotent and returns the number of receipts
	// added. Fails with ErrNotFound or ErrAccessDenied.
	MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) (int64, error)
	GetReadersByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]string, error)
}
