// Package handlers translates HTTP requests into service calls and service
// results into the JSON envelope.
//
// Handlers stay thin: decode the body, read path and query values, call one
// service method and write the result. Business rules live in services and
// SQL lives in repository.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/pkg/ratelimit"
)

// contextKey keeps this package's context keys from colliding with others.
type contextKey string

// UserContextKey carries the authenticated *models.User. Set by
// middleware.AuthMiddleware.
const UserContextKey contextKey = "user"

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var errNoUser = fmt.Errorf("%w: user not found in context", pkg.ErrUnauthorized)

func userFromContext(r *http.Request) (*models.User, error) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok || user == nil {
		return nil, errNoUser
	}
	return user, nil
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body too large", pkg.ErrBadRequest)
		}
		return fmt.Errorf("%w: invalid request body", pkg.ErrBadRequest)
	}
	return nil
}

// writeError writes err as an envelope. Errors that map to 500 are logged
// here since the client only sees a generic message.
func writeError(log *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := pkg.Classify(err); status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	pkg.Error(w, err)
}

// writeRateLimited answers 429 with Retry-After.
func writeRateLimited(w http.ResponseWriter, what string, seconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
		fmt.Sprintf("too many %s, please try again in %s", what, ratelimit.FormatRetryMessage(seconds)))
}

// queryInt parses a non-negative integer query parameter; a missing value
// yields 0.
func queryInt(r *http.Request, names ...string) (int, error) {
	for _, name := range names {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %s must be a non-negative integer", pkg.ErrBadRequest, name)
		}
		return n, nil
	}
	return 0, nil
}
