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

type sqliteConversationRepo struct {
	db *sql.DB
}

// NewSQLiteConversationRepo, constructor.
func NewSQLiteConversationRepo(db *sql.DB) ConversationRepository {
	return &sqliteConversationRepo{db: db}
}

const conversationColumns = `
	c.id, c.kind, c.name, c.created_by,
	c.last_message_id, c.last_message_text, c.last_message_sender_id, lu.username, c.last_message_at,
	c.created_at, c.updated_at`

const conversationFrom = `
	FROM conversations c
	LEFT JOIN users lu ON lu.id = c.last_message_sender_id`

func (r *sqliteConversationRepo) CreatePrivate(ctx context.Context, conv *models.Conversation, a, b string) (bool, error) {
	pairKey := models.PairKey(a, b)
	created := false

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, kind, name, pair_key, created_by, created_at, updated_at)
			VALUES (?, 'private', '', ?, ?, ?, ?)
			ON CONFLICT(pair_key) DO NOTHING`,
			conv.ID, pairKey, conv.CreatedBy, conv.CreatedAt.UTC(), conv.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		created = true
		return insertParticipants(ctx, tx, conv.ID, []string{a, b}, conv.CreatedAt)
	})
	if err != nil {
		return false, err
	}

	var id string
	err = r.db.QueryRowContext(ctx, `SELECT id FROM conversations WHERE pair_key = ?`, pairKey).Scan(&id)
	if err != nil {
		return false, fmt.Errorf("failed to read back private conversation: %w", err)
	}

	stored, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	*conv = *stored
	return created, nil
}

func (r *sqliteConversationRepo) CreateGroup(ctx context.Context, conv *models.Conversation) error {
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, kind, name, pair_key, created_by, created_at, updated_at)
			VALUES (?, 'group', ?, NULL, ?, ?, ?)`,
			conv.ID, conv.Name, conv.CreatedBy, conv.CreatedAt.UTC(), conv.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}
		return insertParticipants(ctx, tx, conv.ID, conv.ParticipantIDs, conv.CreatedAt)
	})
	if err != nil {
		return err
	}

	stored, err := r.GetByID(ctx, conv.ID)
	if err != nil {
		return err
	}
	*conv = *stored
	return nil
}

func insertParticipants(ctx context.Context, tx *sql.Tx, convID string, userIDs []string, at time.Time) error {
	for _, uid := range userIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, unread_count, joined_at)
			VALUES (?, ?, NULL, ?)`, convID, uid, at.UTC())
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: unknown user %s", pkg.ErrInvalidParticipants, uid)
			}
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}
	return nil
}

func (r *sqliteConversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+conversationFrom+` WHERE c.id = ?`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: conversation not found", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	convs := []models.Conversation{*conv}
	if err := r.attachParticipants(ctx, convs); err != nil {
		return nil, err
	}
	return &convs[0], nil
}

func (r *sqliteConversationRepo) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+conversationColumns+conversationFrom+`
		JOIN conversation_participants me ON me.conversation_id = c.id AND me.user_id = ?
		ORDER BY c.last_message_at IS NULL, c.last_message_at DESC, c.created_at DESC, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	convs := []models.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, *conv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	// The pool holds one connection; rows must be released before the next query.
	rows.Close()

	if err := r.attachParticipants(ctx, convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// attachParticipants fills ParticipantIDs, Participants and UnreadCounts for
// every conversation in convs with a single query.
func (r *sqliteConversationRepo) attachParticipants(ctx context.Context, convs []models.Conversation) error {
	if len(convs) == 0 {
		return nil
	}

	index := make(map[string]int, len(convs))
	ids := make([]string, len(convs))
	for i := range convs {
		index[convs[i].ID] = i
		ids[i] = convs[i].ID
		convs[i].ParticipantIDs = []string{}
		convs[i].Participants = []models.UserSummary{}
		convs[i].UnreadCounts = map[string]int{}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT cp.conversation_id, cp.unread_count, u.id, u.username, u.avatar, u.status, u.last_seen_at
		FROM conversation_participants cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.conversation_id IN (`+placeholders(len(ids))+`)
		ORDER BY cp.joined_at, u.username`, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			convID   string
			unread   sql.NullInt64
			u        models.UserSummary
			lastSeen sql.NullTime
		)
		if err := rows.Scan(&convID, &unread, &u.ID, &u.Username, &u.Avatar, &u.Status, &lastSeen); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		u.LastSeen = timePtr(lastSeen)

		c := &convs[index[convID]]
		c.ParticipantIDs = append(c.ParticipantIDs, u.ID)
		c.Participants = append(c.Participants, u)
		if unread.Valid {
			c.UnreadCounts[u.ID] = int(unread.Int64)
		}
	}
	return rows.Err()
}

func (r *sqliteConversationRepo) ListIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT conversation_id FROM conversation_participants WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation ids: %w", err)
	}
	return scanStrings(rows)
}

func (r *sqliteConversationRepo) ParticipantIDs(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = ? ORDER BY joined_at, user_id`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	ids, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: conversation not found", pkg.ErrNotFound)
	}
	return ids, nil
}

func (r *sqliteConversationRepo) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, "conversations")
}

func scanConversation(row interface{ Scan(...any) error }) (*models.Conversation, error) {
	var (
		c          models.Conversation
		lmID       sql.NullString
		lmText     sql.NullString
		lmSender   sql.NullString
		lmUsername sql.NullString
		lmAt       sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.Kind, &c.Name, &c.CreatedBy,
		&lmID, &lmText, &lmSender, &lmUsername, &lmAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lmID.Valid {
		c.LastMessage = &models.LastMessage{
			ID:             lmID.String,
			Text:           lmText.String,
			SenderID:       lmSender.String,
			SenderUsername: lmUsername.String,
			At:             lmAt.Time,
		}
	}
	return &c, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
