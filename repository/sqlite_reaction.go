package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akinalp/parley/database"
	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
)

type sqliteReactionRepo struct {
	db *sql.DB
}

// NewSQLiteReactionRepo, constructor.
func NewSQLiteReactionRepo(db *sql.DB) ReactionRepository {
	return &sqliteReactionRepo{db: db}
}

func (r *sqliteReactionRepo) Toggle(ctx context.Context, messageID, userID, emoji string) (bool, models.Reactions, error) {
	var (
		added     bool
		reactions models.Reactions
	)

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var current sql.NullString
		err := tx.QueryRowContext(ctx, `
			SELECT (SELECT emoji FROM message_reactions WHERE message_id = m.id AND user_id = ?)
			FROM messages m WHERE m.id = ?`, userID, messageID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: message not found", pkg.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read reaction: %w", err)
		}

		if current.Valid && current.String == emoji {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM message_reactions WHERE message_id = ? AND user_id = ?`, messageID, userID)
		} else {
			added = true
			_, err = tx.ExecContext(ctx, `
				INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(message_id, user_id) DO UPDATE SET emoji = excluded.emoji, created_at = excluded.created_at`,
				messageID, userID, emoji, time.Now().UTC())
		}
		if err != nil {
			return fmt.Errorf("failed to toggle reaction: %w", err)
		}

		all, err := loadReactions(ctx, tx, []string{messageID})
		if err != nil {
			return err
		}
		reactions = all[messageID]
		if reactions == nil {
			reactions = models.Reactions{}
		}
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return added, reactions, nil
}

func (r *sqliteReactionRepo) GetByMessageIDs(ctx context.Context, messageIDs []string) (map[string]models.Reactions, error) {
	return loadReactions(ctx, r.db, messageIDs)
}

func loadReactions(ctx context.Context, q database.TxQuerier, messageIDs []string) (map[string]models.Reactions, error) {
	out := make(map[string]models.Reactions, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT message_id, user_id, emoji FROM message_reactions
		WHERE message_id IN (`+placeholders(len(messageIDs))+`)`, stringArgs(messageIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msgID, userID, emoji string
		if err := rows.Scan(&msgID, &userID, &emoji); err != nil {
			return nil, fmt.Errorf("failed to scan reaction: %w", err)
		}
		if out[msgID] == nil {
			out[msgID] = models.Reactions{}
		}
		out[msgID][userID] = emoji
	}
	return out, rows.Err()
}
