package main

import (
	"net/http"

	"github.com/akinalp/parley/handlers"
	"github.com/akinalp/parley/middleware"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/pkg/metrics"
	"github.com/akinalp/parley/repository"
	"github.com/akinalp/parley/services"
)

// initRoutes registers every endpoint on mux.
func initRoutes(
	mux *http.ServeMux,
	h *Handlers,
	authService services.AuthService,
	userRepo repository.UserRepository,
	m *metrics.Metrics,
	exposeMetrics bool,
) {
	authMw := middleware.NewAuthMiddleware(authService, userRepo)
	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(handler)
	}

	// Auth
	mux.HandleFunc("POST /api/auth/signup", h.Auth.Signup)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.Handle("POST /api/auth/logout", auth(h.Auth.Logout))

	// Users
	mux.Handle("GET /api/users", auth(h.User.List))
	mux.Handle("GET /api/users/me", auth(h.User.Me))
	mux.Handle("PATCH /api/users/settings", auth(h.User.UpdateSettings))

	// Conversations
	mux.Handle("GET /api/conversations", auth(h.Conversation.List))
	mux.Handle("POST /api/conversations", auth(h.Conversation.Create))

	// Messages
	mux.Handle("GET /api/messages/{conversationId}", auth(h.Message.List))
	mux.Handle("POST /api/messages", auth(h.Message.Send))
	mux.Handle("PATCH /api/messages/{id}", auth(h.Message.Edit))
	mux.Handle("DELETE /api/messages/{id}", auth(h.Message.Delete))
	mux.Handle("PATCH /api/messages/{id}/{action}", auth(messageSubroutes(h)))

	// Ops
	mux.Handle("GET /api/stats", auth(h.Stats.Stats))
	mux.HandleFunc("GET /api/health", handlers.Health)
	if exposeMetrics {
		mux.Handle("GET /metrics", m.Handler())
	}

	// The socket authenticates itself: browsers cannot set headers on the
	// upgrade request, so the token travels as ?token=.
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)
}

// messageSubroutes serves PATCH /api/messages/read/{conversationId} and
// PATCH /api/messages/{id}/react. The mux rejects registering both patterns
// since "/api/messages/read/react" would match either.
func messageSubroutes(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.PathValue("id") == "read":
			r.SetPathValue("conversationId", r.PathValue("action"))
			h.Conversation.MarkRead(w, r)
		case r.PathValue("action") == "react":
			h.Message.React(w, r)
		default:
			pkg.ErrorWithMessage(w, http.StatusNotFound, "not found")
		}
	}
}
