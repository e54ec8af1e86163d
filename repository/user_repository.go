// Package repository is the storage layer. Services depend on the interfaces
// declared here; the sqlite_* files implement them on top of database/sql and
// the redis_* file implements the optional presence mirror.
package repository

import (
	"context"
	"time"

	"github.com/akinalp/parley/models"
)

// UserRepository persists accounts, settings and presence.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// ListExcept returns every user but userID, ordered by username.
	ListExcept(ctx context.Context, userID string) ([]models.UserSummary, error)
	UpdateSettings(ctx context.Context, userID string, settings models.UserSettings) error
	// UpdatePresence sets status and, when lastSeen is non-nil, last_seen_at.
	UpdatePresence(ctx context.Context, userID string, status models.UserStatus, lastSeen *time.Time) error
	// ResetPresence marks every non-offline user offline. Called at startup,
	// when no socket can be live yet.
	ResetPresence(ctx context.Context, at time.Time) (int64, error)
	Count(ctx context.Context) (int, error)
}
