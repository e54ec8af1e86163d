package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/pkg/metrics"
	"github.com/akinalp/parley/repository"
	"github.com/akinalp/parley/ws"
)

// MessageService is the message log: append, edit, delete, react and paged
// reads.
//
// Every mutation commits and dispatches while holding its conversation's
// stripe of ConversationLocks, so room events leave in commit order.
type MessageService interface {
	// List returns the window of params.Limit messages starting
	// params.Offset back from the newest, oldest first.
	List(ctx context.Context, conversationID, userID string, params models.MessageListParams) ([]models.Message, error)
	Send(ctx context.Context, userID string, req *models.SendMessageRequest) (*models.Message, error)
	Edit(ctx context.Context, messageID, userID string, req *models.EditMessageRequest) (*models.Message, error)
	Delete(ctx context.Context, messageID, userID string) error
	ToggleReaction(ctx context.Context, messageID, userID string, req *models.ReactRequest) (*models.ReactionResult, error)
}

type messageService struct {
	messageRepo  repository.MessageRepository
	convRepo     repository.ConversationRepository
	reactionRepo repository.ReactionRepository
	hub          ws.Broadcaster
	locks        *ConversationLocks
	metrics      *metrics.Metrics
	now          func() time.Time
	log          *zap.Logger
}

// NewMessageService, constructor.
func NewMessageService(
	messageRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	reactionRepo repository.ReactionRepository,
	hub ws.Broadcaster,
	locks *ConversationLocks,
	m *metrics.Metrics,
	log *zap.Logger,
) MessageService {
	return &messageService{
		messageRepo:  messageRepo,
		convRepo:     convRepo,
		reactionRepo: reactionRepo,
		hub:          hub,
		locks:        locks,
		metrics:      m,
		now:          time.Now,
		log:          log,
	}
}

func (s *messageService) List(ctx context.Context, conversationID, userID string, params models.MessageListParams) ([]models.Message, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	params.Normalize()
	return s.messageRepo.ListByConversation(ctx, conversationID, params.Limit, params.Offset)
}

// requireParticipant fails with ErrNotFound for an unknown conversation and
// ErrAccessDenied when userID is not in it.
func (s *messageService) requireParticipant(ctx context.Context, conversationID, userID string) error {
	ids, err := s.convRepo.ParticipantIDs(ctx, conversationID)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, userID) {
		return fmt.Errorf("%w: not a participant of this conversation", pkg.ErrAccessDenied)
	}
	return nil
}

// Send appends a message. The repository commits the append together with
// the conversation's last-message and unread updates.
func (s *messageService) Send(ctx context.Context, userID string, req *models.SendMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	unlock := s.locks.Lock(req.ConversationID)
	defer unlock()

	now := s.now().UTC()
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		SenderID:       userID,
		Content:        req.Content,
		Type:           req.Type,
		FileURL:        req.FileURL,
		ReplyToID:      req.ReplyTo,
		Forwarded:      req.Forwarded,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	saved, err := s.messageRepo.CreateWithDelivery(ctx, msg)
	if err != nil {
		return nil, err
	}
	s.metrics.MessagesAppended.Inc()

	s.hub.BroadcastToRoom(saved.ConversationID, ws.Event{Op: ws.OpNewMessage, Data: saved}, "")
	return saved, nil
}

// ownedMessage loads messageID and checks userID sent it.
func (s *messageService) ownedMessage(ctx context.Context, messageID, userID string) (*models.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, fmt.Errorf("%w: only the sender can change this message", pkg.ErrForbidden)
	}
	return msg, nil
}

// Edit replaces the content. Id, sender and createdAt never change and
// updatedAt never moves backwards.
func (s *messageService) Edit(ctx context.Context, messageID, userID string, req *models.EditMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	msg, err := s.ownedMessage(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(msg.ConversationID)
	defer unlock()

	updatedAt := s.now().UTC()
	if updatedAt.Before(msg.UpdatedAt) {
		updatedAt = msg.UpdatedAt
	}
	if err := s.messageRepo.UpdateContent(ctx, messageID, req.Content, updatedAt); err != nil {
		return nil, err
	}

	updated, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToRoom(updated.ConversationID, ws.Event{Op: ws.OpMessageUpdated, Data: updated}, "")
	return updated, nil
}

// Delete removes the message and, if it was the conversation's last one,
// re-derives the last-message summary from what remains.
func (s *messageService) Delete(ctx context.Context, messageID, userID string) error {
	msg, err := s.ownedMessage(ctx, messageID, userID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(msg.ConversationID)
	defer unlock()

	last, recomputed, err := s.messageRepo.DeleteAndRecompute(ctx, msg)
	if err != nil {
		return err
	}

	payload := models.MessageDeleted{MessageID: msg.ID, ConversationID: msg.ConversationID}
	if recomputed {
		payload.LastMessage = last
		s.log.Debug("last message recomputed",
			zap.String("conversation_id", msg.ConversationID),
			zap.Bool("empty", last == nil))
	}

	s.hub.BroadcastToRoom(msg.ConversationID, ws.Event{Op: ws.OpMessageDeleted, Data: payload}, "")
	return nil
}
