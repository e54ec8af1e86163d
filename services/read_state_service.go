package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/ws"
)

// MarkRead is idempotent: a second call adds no receipts and leaves the
// counter at 0. The messagesRead event is sent either way.
func (s *conversationService) MarkRead(ctx context.Context, conversationID, userID string) error {
	unlock := s.locks.Lock(conversationID)
	defer unlock()

	marked, err := s.readRepo.MarkConversationRead(ctx, conversationID, userID, s.now().UTC())
	if err != nil {
		return err
	}

	s.hub.BroadcastToRoom(conversationID, ws.Event{
		Op:   ws.OpMessagesRead,
		Data: models.ReadReceipt{ConversationID: conversationID, UserID: userID},
	}, "")

	s.log.Debug("conversation read",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", userID),
		zap.Int64("marked", marked))
	return nil
}
