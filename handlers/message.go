package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/pkg/ratelimit"
	"github.com/akinalp/parley/services"
)

type MessageHandler struct {
	messageService services.MessageService
	sendLimiter    *ratelimit.KeyedLimiter
	log            *zap.Logger
}

// NewMessageHandler, constructor. A nil sendLimiter disables send
// throttling.
func NewMessageHandler(messageService services.MessageService, sendLimiter *ratelimit.KeyedLimiter, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		sendLimiter:    sendLimiter,
		log:            log,
	}
}

// List godoc
// GET /api/messages/{conversationId}?limit=50&skip=0
//
// Returns the page starting skip messages back from the newest, oldest
// first. "offset" is accepted as an alias of skip.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		pkg.Error(w, err)
		return
	}
	offset, err := queryInt(r, "skip", "offset")
	if err != nil {
		pkg.Error(w, err)
		return
	}

	msgs, err := h.messageService.List(r.Context(), r.PathValue("conversationId"), user.ID,
		models.MessageListParams{Limit: limit, Offset: offset})
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	pkg.JSON(w, http.StatusOK, msgs)
}

// Send godoc
// POST /api/messages
// Body: { "conversationId", "content", "type"?, "fileUrl"?, "replyTo"?, "forwarded"? }
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if ok, wait := h.sendLimiter.Allow(user.ID); !ok {
		writeRateLimited(w, "messages", ratelimit.RetryAfterSeconds(wait))
		return
	}

	var req models.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	msg, err := h.messageService.Send(r.Context(), user.ID, &req)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, msg)
}

// Edit godoc
// PATCH /api/messages/{id}
// Body: { "content": "..." }
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	var req models.EditMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	msg, err := h.messageService.Edit(r.Context(), r.PathValue("id"), user.ID, &req)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	pkg.JSON(w, http.StatusOK, msg)
}

// Delete godoc
// DELETE /api/messages/{id}
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	id := r.PathValue("id")
	if err := h.messageService.Delete(r.Context(), id, user.ID); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "message deleted", "id": id})
}
