package repository

import (
	"context"

	"github.com/akinalp/parley/models"
)

// ReactionRepository stores at most one emoji per (message, user).
type ReactionRepository interface {
	// Toggle removes userID's reaction when it equals emoji and otherwise
	// sets it, replacing any previous emoji. It returns whether the net
	// effect was an add and the message's resulting reactions.
	Toggle(ctx context.Context, messageID, userID, emoji string) (added bool, reactions models.Reactions, err error)
	GetByMessageIDs(ctx context.Context, messageIDs []string) (map[string]models.Reactions, error)
}
