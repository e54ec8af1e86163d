package handlers

import (
	"net/http"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
)

// React godoc
// PATCH /api/messages/{id}/react
// Body: { "emoji": "👍" }
//
// Sending the emoji the caller already reacted with removes it.
func (h *MessageHandler) React(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	var req models.ReactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	result, err := h.messageService.ToggleReaction(r.Context(), r.PathValue("id"), user.ID, &req)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	pkg.JSON(w, http.StatusOK, result)
}
