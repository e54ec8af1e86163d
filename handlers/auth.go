package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/pkg/ratelimit"
	"github.com/akinalp/parley/services"
)

// AuthHandler serves signup, login and logout.
type AuthHandler struct {
	authService  services.AuthService
	loginLimiter *ratelimit.KeyedLimiter
	log          *zap.Logger
}

// NewAuthHandler, constructor. A nil loginLimiter disables login throttling.
func NewAuthHandler(authService services.AuthService, loginLimiter *ratelimit.KeyedLimiter, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		loginLimiter: loginLimiter,
		log:          log,
	}
}

// Signup godoc
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	resp, err := h.authService.Signup(r.Context(), &req)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, resp)
}

// Login godoc
// POST /api/auth/login
//
// Throttled per client IP. A successful login clears the IP's bucket.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ExtractIP(r)
	if ok, wait := h.loginLimiter.Allow(ip); !ok {
		h.log.Warn("login rate limited", zap.String("ip", ip))
		writeRateLimited(w, "login attempts", ratelimit.RetryAfterSeconds(wait))
		return
	}

	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	h.loginLimiter.Reset(ip)
	pkg.JSON(w, http.StatusOK, resp)
}

// Logout godoc
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if err := h.authService.Logout(r.Context(), user.ID); err != nil {
		writeError(h.log, w, r, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
