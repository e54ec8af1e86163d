package services

import (
	"context"
	"fmt"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/ws"
)

// ToggleReaction sets the caller's reaction to req.Emoji, or removes it when
// it already is req.Emoji. A user holds at most one reaction per message.
func (s *messageService) ToggleReaction(ctx context.Context, messageID, userID string, req *models.ReactRequest) (*models.ReactionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(msg.ConversationID)
	defer unlock()

	added, reactions, err := s.reactionRepo.Toggle(ctx, messageID, userID, req.Emoji)
	if err != nil {
		return nil, err
	}

	result := &models.ReactionResult{
		MessageID:      messageID,
		ConversationID: msg.ConversationID,
		Reactions:      reactions,
		UserID:         userID,
		Added:          added,
	}
	if added {
		emoji := req.Emoji
		result.Emoji = &emoji
	}

	s.hub.BroadcastToRoom(msg.ConversationID, ws.Event{Op: ws.OpMessageReactionUpdated, Data: result}, "")
	return result, nil
}
