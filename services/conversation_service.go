package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/repository"
	"github.com/akinalp/parley/ws"
)

// ConversationService manages conversations and their read state.
type ConversationService interface {
	List(ctx context.Context, userID string) ([]models.Conversation, error)
	// Create returns the new conversation, or for a private pair that
	// already has one, the existing conversation with created=false.
	Create(ctx context.Context, userID string, req *models.CreateConversationRequest) (conv *models.Conversation, created bool, err error)
	// MarkRead marks every message in the conversation read by userID and
	// resets its unread counter.
	MarkRead(ctx context.Context, conversationID, userID string) error
	// RoomIDsForUser is the room snapshot a new socket subscribes to.
	RoomIDsForUser(ctx context.Context, userID string) ([]string, error)
}

type conversationService struct {
	convRepo repository.ConversationRepository
	readRepo repository.ReadStateRepository
	hub      ws.Broadcaster
	locks    *ConversationLocks
	now      func() time.Time
	log      *zap.Logger
}

// NewConversationService, constructor. locks must be shared with the
// MessageService so read receipts and message events keep commit order.
func NewConversationService(
	convRepo repository.ConversationRepository,
	readRepo repository.ReadStateRepository,
	hub ws.Broadcaster,
	locks *ConversationLocks,
	log *zap.Logger,
) ConversationService {
	return &conversationService{
		convRepo: convRepo,
		readRepo: readRepo,
		hub:      hub,
		locks:    locks,
		now:      time.Now,
		log:      log,
	}
}

func (s *conversationService) List(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.convRepo.ListForUser(ctx, userID)
}

func (s *conversationService) Create(ctx context.Context, userID string, req *models.CreateConversationRequest) (*models.Conversation, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	members := req.Members(userID)
	if err := req.ValidateMembers(members); err != nil {
		return nil, false, fmt.Errorf("%w: %v", pkg.ErrInvalidParticipants, err)
	}

	now := s.now().UTC()
	conv := &models.Conversation{
		ID:             uuid.NewString(),
		Kind:           req.Type,
		Name:           req.Name,
		CreatedBy:      userID,
		ParticipantIDs: members,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created := true
	switch req.Type {
	case models.ConversationPrivate:
		var err error
		created, err = s.convRepo.CreatePrivate(ctx, conv, members[0], members[1])
		if err != nil {
			return nil, false, err
		}
	default:
		if err := s.convRepo.CreateGroup(ctx, conv); err != nil {
			return nil, false, err
		}
	}

	if !created {
		return conv, false, nil
	}

	// Live connections join the room before the announcement, so no message
	// sent right after creation is missed.
	s.hub.JoinRoom(conv.ID, conv.ParticipantIDs)
	s.hub.BroadcastToUsers(conv.ParticipantIDs, ws.Event{Op: ws.OpNewConversation, Data: conv})

	s.log.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("type", string(conv.Kind)),
		zap.Int("participants", len(conv.ParticipantIDs)))
	return conv, true, nil
}

func (s *conversationService) RoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	return s.convRepo.ListIDsForUser(ctx, userID)
}
