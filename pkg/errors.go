// Package pkg holds utilities shared across layers: domain errors and the
// HTTP response envelope.
//
// Services return (possibly wrapped) sentinel errors; handlers map them to
// status codes with errors.Is:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
package pkg

import (
	"errors"
	"fmt"
)

// Domain-level errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyExists   = errors.New("already exists")
	ErrBadRequest      = errors.New("bad request")
	ErrTooManyRequests = errors.New("too many requests")
	ErrInternal        = errors.New("internal error")
)

// Refinements. Each still matches its parent with errors.Is.
var (
	// ErrAccessDenied: authenticated but not a participant of the conversation.
	ErrAccessDenied = fmt.Errorf("%w: access denied", ErrForbidden)

	// ErrInvalidReference: reply target missing or in another conversation.
	ErrInvalidReference = fmt.Errorf("%w: invalid reference", ErrBadRequest)

	// ErrInvalidParticipants: empty member list or a private chat that is not a pair.
	ErrInvalidParticipants = fmt.Errorf("%w: invalid participants", ErrBadRequest)
)
