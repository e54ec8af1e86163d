package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akinalp/parley/database"
	"github.com/akinalp/parley/pkg"
)

// isUniqueViolation matches SQLite's unique-constraint error text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func expectAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s not found", pkg.ErrNotFound, entity)
	}
	return nil
}

// countRows is only called with table names from this package.
func countRows(ctx context.Context, q database.TxQuerier, table string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// checkMembership returns ErrNotFound when the conversation does not exist
// and ErrAccessDenied when userID is not one of its participants.
func checkMembership(ctx context.Context, q database.TxQuerier, conversationID, userID string) error {
	var member sql.NullInt64
	err := q.QueryRowContext(ctx, `
		SELECT (SELECT 1 FROM conversation_participants cp
		        WHERE cp.conversation_id = c.id AND cp.user_id = ?)
		FROM conversations c WHERE c.id = ?`, userID, conversationID).Scan(&member)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: conversation not found", pkg.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !member.Valid {
		return pkg.ErrAccessDenied
	}
	return nil
}
