package main

import (
	"go.uber.org/zap"

	"github.com/akinalp/parley/config"
	"github.com/akinalp/parley/handlers"
	"github.com/akinalp/parley/ws"
)

// Handlers holds every HTTP and socket handler.
type Handlers struct {
	Auth         *handlers.AuthHandler
	User         *handlers.UserHandler
	Conversation *handlers.ConversationHandler
	Message      *handlers.MessageHandler
	Stats        *handlers.StatsHandler
	WS           *ws.Handler
}

func initHandlers(svcs *Services, limiters *RateLimiters, hub *ws.Hub, cfg *config.Config, log *zap.Logger) *Handlers {
	hlog := log.Named("http")
	return &Handlers{
		Auth:         handlers.NewAuthHandler(svcs.Auth, limiters.Login, hlog),
		User:         handlers.NewUserHandler(svcs.User, hlog),
		Conversation: handlers.NewConversationHandler(svcs.Conversation, hlog),
		Message:      handlers.NewMessageHandler(svcs.Message, limiters.Message, hlog),
		Stats:        handlers.NewStatsHandler(svcs.Metrics, hlog),
		WS:           ws.NewHandler(hub, svcs.Auth, svcs.Conversation.RoomIDsForUser, cfg.Server.AllowedOrigins, log.Named("ws")),
	}
}
