package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/akinalp/parley/config"
	"github.com/akinalp/parley/pkg/metrics"
	"github.com/akinalp/parley/pkg/ratelimit"
	"github.com/akinalp/parley/services"
	"github.com/akinalp/parley/ws"
)

// conversationLockStripes is the number of mutex stripes shared by the
// conversation and message services.
const conversationLockStripes = 256

// limiterIdleTTL is how long an idle rate limit bucket is kept.
const limiterIdleTTL = 10 * time.Minute

// Services holds every business service.
type Services struct {
	Auth         services.AuthService
	User         services.UserService
	Presence     services.PresenceService
	Conversation services.ConversationService
	Message      services.MessageService
	Metrics      services.MetricsCollector
}

// RateLimiters are the per-key token buckets used by the handlers.
type RateLimiters struct {
	Login   *ratelimit.KeyedLimiter // keyed by client IP
	Message *ratelimit.KeyedLimiter // keyed by user id
}

// initServices builds the services. The hub is only used for broadcasting
// here; callbacks are registered separately before it starts running.
func initServices(repos *Repositories, hub *ws.Hub, m *metrics.Metrics, cfg *config.Config, log *zap.Logger) *Services {
	locks := services.NewConversationLocks(conversationLockStripes)

	presence := services.NewPresenceService(repos.User, repos.Conversation, repos.Presence, hub, log.Named("presence"))

	return &Services{
		Auth:         services.NewAuthService(repos.User, presence, hub, cfg.JWT.Secret, cfg.JWT.TokenTTL(), log.Named("auth")),
		User:         services.NewUserService(repos.User),
		Presence:     presence,
		Conversation: services.NewConversationService(repos.Conversation, repos.ReadState, hub, locks, log.Named("conversation")),
		Message:      services.NewMessageService(repos.Message, repos.Conversation, repos.Reaction, hub, locks, m, log.Named("message")),
		Metrics:      services.NewMetricsCollector(repos.User, repos.Conversation, repos.Message, hub, m, cfg.Metrics.Interval, log.Named("metrics")),
	}
}

// initRateLimiters builds the login (per IP) and message send (per user)
// limiters. A zero rate disables the limiter.
func initRateLimiters(cfg config.RateLimitConfig) *RateLimiters {
	return &RateLimiters{
		Login:   ratelimit.PerMinute(cfg.LoginPerMinute, cfg.LoginBurst, limiterIdleTTL),
		Message: ratelimit.New(cfg.MessagesPerSecond, cfg.MessageBurst, limiterIdleTTL),
	}
}
