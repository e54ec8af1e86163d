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

type sqliteUserRepo struct {
	db database.TxQuerier
}

// NewSQLiteUserRepo, constructor.
func NewSQLiteUserRepo(db database.TxQuerier) UserRepository {
	return &sqliteUserRepo{db: db}
}

const userColumns = `id, username, password_hash, avatar, status, last_seen_at, theme, notifications, created_at`

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, avatar, status, last_seen_at, theme, notifications, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Avatar,
		user.Status,
		nullTime(user.LastSeen),
		user.Settings.Theme,
		user.Settings.Notifications,
		user.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username already taken", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user not found", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user not found", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) ListExcept(ctx context.Context, userID string) ([]models.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, avatar, status, last_seen_at
		FROM users WHERE id <> ? ORDER BY username`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.UserSummary{}
	for rows.Next() {
		var (
			u        models.UserSummary
			lastSeen sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Avatar, &u.Status, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		u.LastSeen = timePtr(lastSeen)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func (r *sqliteUserRepo) UpdateSettings(ctx context.Context, userID string, settings models.UserSettings) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET theme = ?, notifications = ? WHERE id = ?`,
		settings.Theme, settings.Notifications, userID)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return expectAffected(res, "user")
}

func (r *sqliteUserRepo) UpdatePresence(ctx context.Context, userID string, status models.UserStatus, lastSeen *time.Time) error {
	var (
		res sql.Result
		err error
	)
	if lastSeen != nil {
		res, err = r.db.ExecContext(ctx,
			`UPDATE users SET status = ?, last_seen_at = ? WHERE id = ?`,
			status, lastSeen.UTC(), userID)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE users SET status = ? WHERE id = ?`, status, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return expectAffected(res, "user")
}

func (r *sqliteUserRepo) ResetPresence(ctx context.Context, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET status = 'offline', last_seen_at = ? WHERE status <> 'offline'`, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reset presence: %w", err)
	}
	return res.RowsAffected()
}

func (r *sqliteUserRepo) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, "users")
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u        models.User
		lastSeen sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Avatar, &u.Status, &lastSeen,
		&u.Settings.Theme, &u.Settings.Notifications, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.LastSeen = timePtr(lastSeen)
	return &u, nil
}
