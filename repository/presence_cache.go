package repository

import (
	"context"
	"time"
)

// PresenceCache mirrors presence transitions into a shared store so other
// processes (dashboards, a future second node) can read who is online
// without touching SQLite. SQLite stays the source of truth.
type PresenceCache interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
	OnlineUserIDs(ctx context.Context) ([]string, error)
	LastSeen(ctx context.Context, userID string) (time.Time, bool, error)
	// Reset clears the online set; called at startup.
	Reset(ctx context.Context) error
	Close() error
}
