// Package database owns the SQLite connection and schema migrations.
//
// The pure-Go modernc driver registers itself as "sqlite"; no CGO is needed.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DB wraps the shared *sql.DB pool.
type DB struct {
	Conn *sql.DB
	log  *zap.Logger
}

// MigrateResult describes what Migrate did.
type MigrateResult struct {
	Version uint
	Dirty   bool
	Changed bool
}

// New opens (creating if needed) the SQLite file at dbPath and applies every
// pending migration from migrationsFS.
//
// Pragmas:
//   - foreign_keys(1): SQLite ships with FK enforcement off.
//   - journal_mode(WAL): readers do not block the writer.
//   - busy_timeout(5000): wait for the write lock instead of failing fast.
//   - _txlock=immediate: BEGIN takes the write lock up front, so read-then-write
//     transactions (reaction toggle, pair dedup) never lose an upgrade race.
func New(dbPath string, migrationsFS fs.FS, log *zap.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" +
		"&_txlock=immediate&_time_format=sqlite"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer connection serializes transactions; SQLite allows only
	// one writer anyway and this removes "database is locked" retries.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Conn: conn, log: log}

	res, err := db.Migrate(migrationsFS)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("connected",
		zap.String("path", dbPath),
		zap.Uint("schema_version", res.Version),
		zap.Bool("migrated", res.Changed),
	)
	return db, nil
}

// Migrate applies pending up-migrations from migrationsFS.
func (db *DB) Migrate(migrationsFS fs.FS) (*MigrateResult, error) {
	source, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db.Conn, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	changed := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("migration up: %w", err)
		}
		changed = false
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("migration version: %w", err)
	}

	return &MigrateResult{Version: version, Dirty: dirty, Changed: changed}, nil
}

// Close closes the pool. Callers typically defer it right after New.
func (db *DB) Close() error {
	return db.Conn.Close()
}
