package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/akinalp/parley/database"
	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
)

type sqliteMessageRepo struct {
	db *sql.DB
}

// NewSQLiteMessageRepo, constructor.
func NewSQLiteMessageRepo(db *sql.DB) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

// messageSelect joins the sender and the (possibly deleted) reply target.
const messageSelect = `
	SELECT m.id, m.conversation_id, m.sender_id, u.username, u.avatar,
	       m.content, m.type, m.file_url, m.reply_to_id, m.forwarded, m.edited,
	       m.created_at, m.updated_at,
	       rm.id, rm.content, rm.sender_id, ru.username
	FROM messages m
	JOIN users u ON u.id = m.sender_id
	LEFT JOIN messages rm ON rm.id = m.reply_to_id
	LEFT JOIN users ru ON ru.id = rm.sender_id`

func (r *sqliteMessageRepo) CreateWithDelivery(ctx context.Context, msg *models.Message) (*models.Message, error) {
	now := msg.CreatedAt.UTC()

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := checkMembership(ctx, tx, msg.ConversationID, msg.SenderID); err != nil {
			return err
		}

		if msg.ReplyToID != nil {
			var ok bool
			err := tx.QueryRowContext(ctx, `
				SELECT EXISTS(SELECT 1 FROM messages WHERE id = ? AND conversation_id = ?)`,
				*msg.ReplyToID, msg.ConversationID).Scan(&ok)
			if err != nil {
				return fmt.Errorf("failed to check reply target: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: reply target is not a message in this conversation", pkg.ErrInvalidReference)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, content, type, file_url, reply_to_id, forwarded, edited, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Type,
			msg.FileURL, msg.ReplyToID, msg.Forwarded, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_reads (message_id, user_id, read_at) VALUES (?, ?, ?)`,
			msg.ID, msg.SenderID, now); err != nil {
			return fmt.Errorf("failed to mark sender read: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE conversations
			SET last_message_id = ?, last_message_text = ?, last_message_sender_id = ?,
			    last_message_at = ?, updated_at = ?
			WHERE id = ?`,
			msg.ID, msg.Content, msg.SenderID, now, now, msg.ConversationID); err != nil {
			return fmt.Errorf("failed to update last message: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE conversation_participants
			SET unread_count = COALESCE(unread_count, 0) + 1
			WHERE conversation_id = ? AND user_id <> ?`,
			msg.ConversationID, msg.SenderID); err != nil {
			return fmt.Errorf("failed to increment unread counts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, msg.ID)
}

func (r *sqliteMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, messageSelect+` WHERE m.id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message not found", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	msgs := []models.Message{*msg}
	if err := attachReadsAndReactions(ctx, r.db, msgs); err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

func (r *sqliteMessageRepo) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, messageSelect+`
		WHERE m.conversation_id = ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ? OFFSET ?`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, *msg)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	rows.Close()

	// Newest-first window, returned oldest-first.
	slices.Reverse(msgs)

	if err := attachReadsAndReactions(ctx, r.db, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *sqliteMessageRepo) UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE messages SET content = ?, edited = 1, updated_at = ? WHERE id = ?`,
			content, updatedAt.UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to update message: %w", err)
		}
		if err := expectAffected(res, "message"); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET last_message_text = ? WHERE last_message_id = ?`,
			content, id); err != nil {
			return fmt.Errorf("failed to update last message text: %w", err)
		}
		return nil
	})
}

func (r *sqliteMessageRepo) DeleteAndRecompute(ctx context.Context, msg *models.Message) (*models.LastMessage, bool, error) {
	var (
		last       *models.LastMessage
		recomputed bool
	)

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, msg.ID)
		if err != nil {
			return fmt.Errorf("failed to delete message: %w", err)
		}
		if err := expectAffected(res, "message"); err != nil {
			return err
		}

		var cachedID sql.NullString
		err = tx.QueryRowContext(ctx,
			`SELECT last_message_id FROM conversations WHERE id = ?`, msg.ConversationID).Scan(&cachedID)
		if err != nil {
			return fmt.Errorf("failed to read last message: %w", err)
		}
		if !cachedID.Valid || cachedID.String != msg.ID {
			return nil
		}
		recomputed = true

		var lm models.LastMessage
		err = tx.QueryRowContext(ctx, `
			SELECT m.id, m.content, m.sender_id, u.username, m.created_at
			FROM messages m JOIN users u ON u.id = m.sender_id
			WHERE m.conversation_id = ?
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT 1`, msg.ConversationID).Scan(&lm.ID, &lm.Text, &lm.SenderID, &lm.SenderUsername, &lm.At)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx, `
				UPDATE conversations
				SET last_message_id = NULL, last_message_text = NULL,
				    last_message_sender_id = NULL, last_message_at = NULL
				WHERE id = ?`, msg.ConversationID)
		case err != nil:
			return fmt.Errorf("failed to find new last message: %w", err)
		default:
			last = &lm
			_, err = tx.ExecContext(ctx, `
				UPDATE conversations
				SET last_message_id = ?, last_message_text = ?,
				    last_message_sender_id = ?, last_message_at = ?
				WHERE id = ?`, lm.ID, lm.Text, lm.SenderID, lm.At.UTC(), msg.ConversationID)
		}
		if err != nil {
			return fmt.Errorf("failed to recompute last message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return last, recomputed, nil
}

func (r *sqliteMessageRepo) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, "messages")
}

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	var (
		m            models.Message
		sender       models.MessageSender
		fileURL      sql.NullString
		replyToID    sql.NullString
		replyID      sql.NullString
		replyContent sql.NullString
		replySender  sql.NullString
		replyName    sql.NullString
	)
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &sender.Username, &sender.Avatar,
		&m.Content, &m.Type, &fileURL, &replyToID, &m.Forwarded, &m.Edited,
		&m.CreatedAt, &m.UpdatedAt,
		&replyID, &replyContent, &replySender, &replyName,
	)
	if err != nil {
		return nil, err
	}

	sender.ID = m.SenderID
	m.Sender = &sender
	m.FileURL = stringPtr(fileURL)
	m.ReplyToID = stringPtr(replyToID)

	if replyToID.Valid {
		if replyID.Valid {
			m.ReplyTo = &models.ReplyPreview{
				ID:             replyID.String,
				Content:        replyContent.String,
				SenderID:       replySender.String,
				SenderUsername: replyName.String,
			}
		} else {
			m.ReplyTo = &models.ReplyPreview{ID: replyToID.String, Unavailable: true}
		}
	}

	m.ReadBy = []string{}
	m.Reactions = models.Reactions{}
	return &m, nil
}

// attachReadsAndReactions fills ReadBy and Reactions for msgs.
func attachReadsAndReactions(ctx context.Context, q database.TxQuerier, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
	}

	readers, err := loadReaders(ctx, q, ids)
	if err != nil {
		return err
	}
	reactions, err := loadReactions(ctx, q, ids)
	if err != nil {
		return err
	}

	for i := range msgs {
		if rs, ok := readers[msgs[i].ID]; ok {
			msgs[i].ReadBy = rs
		}
		if rx, ok := reactions[msgs[i].ID]; ok {
			msgs[i].Reactions = rx
		}
	}
	return nil
}
