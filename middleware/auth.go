// Package middleware holds the layers wrapped around the HTTP handlers.
//
// A middleware is a func(next http.Handler) http.Handler. It does its part
// (check a token, count a request) and either calls next or stops the chain
// by writing a response itself.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/akinalp/parley/handlers"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/repository"
	"github.com/akinalp/parley/services"
)

// AuthMiddleware resolves the bearer token to a user.
type AuthMiddleware struct {
	authService services.AuthService
	userRepo    repository.UserRepository
}

// NewAuthMiddleware, constructor.
func NewAuthMiddleware(authService services.AuthService, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		userRepo:    userRepo,
	}
}

// Require rejects the request with 401 unless it carries
// "Authorization: Bearer <token>" for an existing user. The user, with the
// password hash cleared, is stored under handlers.UserContextKey.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}

		claims, err := m.authService.ValidateAccessToken(strings.TrimSpace(tokenString))
		if err != nil {
			pkg.Error(w, err)
			return
		}

		// A valid token can outlive its account.
		user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found")
				return
			}
			pkg.Error(w, err)
			return
		}
		user.PasswordHash = ""

		ctx := context.WithValue(r.Context(), handlers.UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
