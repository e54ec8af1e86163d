package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/services"
)

type ConversationHandler struct {
	conversationService services.ConversationService
	log                 *zap.Logger
}

// NewConversationHandler, constructor.
func NewConversationHandler(conversationService services.ConversationService, log *zap.Logger) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService, log: log}
}

// List godoc
// GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	convs, err := h.conversationService.List(r.Context(), user.ID)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	pkg.JSON(w, http.StatusOK, convs)
}

// Create godoc
// POST /api/conversations
// Body: { "type"?: "private"|"group", "participants": [userId...], "name"?: string }
//
// 201 for a new conversation, 200 when an existing private one is returned.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	var req models.CreateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	conv, created, err := h.conversationService.Create(r.Context(), user.ID, &req)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	pkg.JSON(w, status, conv)
}
