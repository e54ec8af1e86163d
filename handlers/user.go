package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/services"
)

type UserHandler struct {
	userService services.UserService
	log         *zap.Logger
}

// NewUserHandler, constructor.
func NewUserHandler(userService services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

// Me godoc
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	me, err := h.userService.Me(r.Context(), user.ID)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	pkg.JSON(w, http.StatusOK, me)
}

// List godoc
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	users, err := h.userService.List(r.Context(), user.ID)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	pkg.JSON(w, http.StatusOK, users)
}

// UpdateSettings godoc
// PATCH /api/users/settings
// Body: { "theme"?: "light"|"dark", "notifications"?: bool }
func (h *UserHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	var req models.UpdateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	updated, err := h.userService.UpdateSettings(r.Context(), user.ID, &req)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	pkg.JSON(w, http.StatusOK, updated)
}
