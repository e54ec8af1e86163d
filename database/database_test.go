package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"), Migrations(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	res, err := db.Migrate(Migrations())
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if res.Version != 1 {
		t.Errorf("version = %d, want 1", res.Version)
	}
	if res.Dirty {
		t.Error("schema should not be dirty")
	}
}

func TestPairKeyUniqueOnlyForPrivate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustExec(t, db.Conn, `INSERT INTO users (id, username, password_hash, created_at) VALUES ('u1', 'alice', 'x', CURRENT_TIMESTAMP)`)

	insert := `INSERT INTO conversations (id, kind, name, pair_key, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'u1', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`

	if _, err := db.Conn.ExecContext(ctx, insert, "c1", "private", "", "u1:u2"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Conn.ExecContext(ctx, insert, "c2", "private", "", "u1:u2"); err == nil {
		t.Error("duplicate pair_key should violate the unique constraint")
	}

	// Groups carry NULL pair keys and never collide.
	if _, err := db.Conn.ExecContext(ctx, insert, "g1", "group", "team", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Conn.ExecContext(ctx, insert, "g2", "group", "team", nil); err != nil {
		t.Fatal(err)
	}

	// A private conversation must have a pair key.
	if _, err := db.Conn.ExecContext(ctx, insert, "c3", "private", "", nil); err == nil {
		t.Error("private conversation without pair_key should be rejected")
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, created_at) VALUES ('u1', 'alice', 'x', CURRENT_TIMESTAMP)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	var n int
	if err := db.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("users = %d after rollback, want 0", n)
	}
}

func TestWithTxCommits(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	err := WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, created_at) VALUES ('u1', 'alice', 'x', CURRENT_TIMESTAMP)`)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	var name string
	if err := db.Conn.QueryRowContext(ctx, `SELECT username FROM users WHERE id = 'u1'`).Scan(&name); err != nil {
		t.Fatal(err)
	}
	if name != "alice" {
		t.Errorf("username = %q, want alice", name)
	}
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
