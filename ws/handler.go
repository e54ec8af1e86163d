package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/akinalp/parley/models"
)

// TokenValidator is the slice of the auth service the socket handler needs.
// Declared here so ws does not import services.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// RoomLoader returns the conversation ids a user participates in.
type RoomLoader func(ctx context.Context, userID string) ([]string, error)

// Handler upgrades authenticated requests to sockets.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
	loadRooms      RoomLoader
	upgrader       websocket.Upgrader
	log            *zap.Logger
}

// NewHandler, constructor. allowedOrigins empty means any origin.
func NewHandler(hub *Hub, tokenValidator TokenValidator, loadRooms RoomLoader, allowedOrigins []string, log *zap.Logger) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
		loadRooms:      loadRooms,
		log:            log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

// HandleConnection godoc
// GET /ws?token=JWT
//
// The token may also be sent as "Authorization: Bearer <jwt>". A missing or
// invalid token is rejected with 401 before the upgrade.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokenValidator.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, claims.UserID, claims.Username)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	// Rooms are loaded after registration so a conversation created in
	// between reaches this connection through JoinRoom.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	rooms, err := h.loadRooms(ctx, claims.UserID)
	cancel()
	if err != nil {
		h.log.Error("failed to load rooms", zap.String("user_id", claims.UserID), zap.Error(err))
		h.hub.Unregister(client)
		conn.Close()
		return
	}
	h.hub.Subscribe(client, rooms)

	go client.WritePump()
	client.ReadPump()
}
