package services

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/pkg/cache"
	"github.com/akinalp/parley/repository"
	"github.com/akinalp/parley/ws"
)

const (
	// participantCacheTTL bounds how long a typing check trusts a cached
	// participant list. Membership is fixed at creation, so this only limits
	// memory.
	participantCacheTTL = 2 * time.Minute

	presenceWriteTimeout = 5 * time.Second
)

// PresenceService applies presence transitions observed by the hub and relays
// typing signals.
type PresenceService interface {
	// HandleTransition is the hub's transition callback. Storage failures are
	// logged; the hub's connection set stays the source of truth.
	HandleTransition(t ws.Transition)
	// MarkOffline persists offline with a lastSeen stamp and broadcasts it.
	MarkOffline(ctx context.Context, userID string) error
	// Typing is the hub's typing callback. Signals from non-participants are
	// dropped silently.
	Typing(from ws.Sender, data ws.TypingData)
	// Close releases the participant cache.
	Close()
}

type presenceService struct {
	userRepo     repository.UserRepository
	convRepo     repository.ConversationRepository
	cache        repository.PresenceCache
	hub          ws.Broadcaster
	participants *cache.TTLCache[string, []string]
	now          func() time.Time
	log          *zap.Logger
}

// NewPresenceService, constructor. presenceCache may be nil when Redis is not
// configured.
func NewPresenceService(
	userRepo repository.UserRepository,
	convRepo repository.ConversationRepository,
	presenceCache repository.PresenceCache,
	hub ws.Broadcaster,
	log *zap.Logger,
) PresenceService {
	return &presenceService{
		userRepo:     userRepo,
		convRepo:     convRepo,
		cache:        presenceCache,
		hub:          hub,
		participants: cache.New[string, []string](participantCacheTTL, participantCacheTTL),
		now:          time.Now,
		log:          log,
	}
}

func (s *presenceService) HandleTransition(t ws.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceWriteTimeout)
	defer cancel()

	var err error
	switch t.Kind {
	case ws.TransitionOnline:
		err = s.setStatus(ctx, t.UserID, models.UserStatusOnline)
	case ws.TransitionOffline:
		err = s.MarkOffline(ctx, t.UserID)
	case ws.TransitionStatus:
		// A status request queued behind the user's last disconnect is stale.
		if !s.hub.IsOnline(t.UserID) {
			return
		}
		err = s.setStatus(ctx, t.UserID, models.UserStatus(t.Status))
	}
	if err != nil {
		s.log.Error("presence transition failed",
			zap.String("user_id", t.UserID),
			zap.Int("kind", int(t.Kind)),
			zap.Error(err))
	}
}

func (s *presenceService) setStatus(ctx context.Context, userID string, status models.UserStatus) error {
	if err := s.userRepo.UpdatePresence(ctx, userID, status, nil); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.SetOnline(ctx, userID); err != nil {
			s.log.Warn("presence mirror failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	s.hub.BroadcastToAll(ws.Event{
		Op: ws.OpUserStatusChange,
		Data: ws.StatusChangeData{
			UserID:   userID,
			Status:   string(status),
			LastSeen: user.LastSeen,
		},
	})
	s.log.Debug("status changed", zap.String("user_id", userID), zap.String("status", string(status)))
	return nil
}

func (s *presenceService) MarkOffline(ctx context.Context, userID string) error {
	lastSeen := s.now().UTC()
	if err := s.userRepo.UpdatePresence(ctx, userID, models.UserStatusOffline, &lastSeen); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.SetOffline(ctx, userID, lastSeen); err != nil {
			s.log.Warn("presence mirror failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.hub.BroadcastToAll(ws.Event{
		Op: ws.OpUserStatusChange,
		Data: ws.StatusChangeData{
			UserID:   userID,
			Status:   string(models.UserStatusOffline),
			LastSeen: &lastSeen,
		},
	})
	s.log.Debug("user offline", zap.String("user_id", userID))
	return nil
}

func (s *presenceService) Typing(from ws.Sender, data ws.TypingData) {
	members, ok := s.participants.Get(data.ConversationID)
	if !ok {
		ctx, cancel := context.WithTimeout(context.Background(), presenceWriteTimeout)
		ids, err := s.convRepo.ParticipantIDs(ctx, data.ConversationID)
		cancel()
		if err != nil {
			if !errors.Is(err, pkg.ErrNotFound) {
				s.log.Warn("typing participant lookup failed",
					zap.String("conversation_id", data.ConversationID), zap.Error(err))
			}
			return
		}
		s.participants.Set(data.ConversationID, ids)
		members = ids
	}

	if !slices.Contains(members, from.UserID) {
		return
	}

	s.hub.BroadcastToRoom(data.ConversationID, ws.Event{
		Op: ws.OpUserTyping,
		Data: ws.UserTypingData{
			UserID:         from.UserID,
			Username:       from.Username,
			ConversationID: data.ConversationID,
			IsTyping:       data.IsTyping,
		},
	}, from.ConnID)
}

func (s *presenceService) Close() {
	s.participants.Close()
}
