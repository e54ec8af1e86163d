package main

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/akinalp/parley/config"
	"github.com/akinalp/parley/repository"
)

// Repositories holds every storage implementation.
type Repositories struct {
	User         repository.UserRepository
	Conversation repository.ConversationRepository
	Message      repository.MessageRepository
	Reaction     repository.ReactionRepository
	ReadState    repository.ReadStateRepository

	// Presence is nil when Redis is not configured.
	Presence repository.PresenceCache
}

// initRepositories builds the SQLite repositories on conn.
func initRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		User:         repository.NewSQLiteUserRepo(conn),
		Conversation: repository.NewSQLiteConversationRepo(conn),
		Message:      repository.NewSQLiteMessageRepo(conn),
		Reaction:     repository.NewSQLiteReactionRepo(conn),
		ReadState:    repository.NewSQLiteReadStateRepo(conn),
	}
}

// connectPresenceCache dials the optional Redis presence mirror and clears its
// online set. A failed connection is logged and the server runs without the
// mirror.
func connectPresenceCache(cfg config.RedisConfig, log *zap.Logger) repository.PresenceCache {
	if cfg.Addr == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cache, err := repository.ConnectRedisPresence(ctx, cfg.Addr, cfg.Password, cfg.DB, "parley")
	if err != nil {
		log.Warn("redis presence mirror disabled", zap.String("addr", cfg.Addr), zap.Error(err))
		return nil
	}
	if err := cache.Reset(ctx); err != nil {
		log.Warn("failed to reset redis presence", zap.Error(err))
	}

	log.Info("redis presence mirror connected", zap.String("addr", cfg.Addr))
	return cache
}
