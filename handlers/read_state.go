package handlers

import (
	"net/http"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
)

// MarkRead godoc
// PATCH /api/messages/read/{conversationId}
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	conversationID := r.PathValue("conversationId")
	if err := h.conversationService.MarkRead(r.Context(), conversationID, user.ID); err != nil {
		writeError(h.log, w, r, err)
		return
	}

	pkg.JSON(w, http.StatusOK, models.ReadReceipt{ConversationID: conversationID, UserID: user.ID})
}
