package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/akinalp/parley/database"
)

type sqliteReadStateRepo struct {
	db *sql.DB
}

// NewSQLiteReadStateRepo, constructor.
func NewSQLiteReadStateRepo(db *sql.DB) ReadStateRepository {
	return &sqliteReadStateRepo{db: db}
}

func (r *sqliteReadStateRepo) MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) (int64, error) {
	var marked int64

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := checkMembership(ctx, tx, conversationID, userID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO message_reads (message_id, user_id, read_at)
			SELECT id, ?, ? FROM messages
			WHERE conversation_id = ? AND sender_id <> ?`,
			userID, at.UTC(), conversationID, userID)
		if err != nil {
			return fmt.Errorf("failed to insert read receipts: %w", err)
		}
		if marked, err = res.RowsAffected(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE conversation_participants SET unread_count = 0
			WHERE conversation_id = ? AND user_id = ?`, conversationID, userID); err != nil {
			return fmt.Errorf("failed to reset unread count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

func (r *sqliteReadStateRepo) GetReadersByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]string, error) {
	return loadReaders(ctx, r.db, messageIDs)
}

// loadReaders returns reader ids per message in read order.
func loadReaders(ctx context.Context, q database.TxQuerier, messageIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT message_id, user_id FROM message_reads
		WHERE message_id IN (`+placeholders(len(messageIDs))+`)
		ORDER BY read_at, user_id`, stringArgs(messageIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load read receipts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msgID, userID string
		if err := rows.Scan(&msgID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan read receipt: %w", err)
		}
		out[msgID] = append(out[msgID], userID)
	}
	return out, rows.Err()
}
