package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS analysis_fields (
		uid        TEXT    NOT NULL,
		field      TEXT    NOT NULL,
		value      BLOB    NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (uid, field)
	)`,
	`CREATE INDEX IF NOT EXISTS analysis_fields_updated_at ON analysis_fields (updated_at)`,
}

// SQLiteStore keeps sessions in a SQLite database file
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create session schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, uid, field string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM analysis_fields WHERE uid = ? AND field = ?`, uid, field).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session field: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) Put(ctx context.Context, uid string, fields map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO analysis_fields (uid, field, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (uid, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UnixNano()
	for field, value := range fields {
		if _, err := stmt.ExecContext(ctx, uid, field, value, now); err != nil {
			return fmt.Errorf("failed to store session field %s: %w", field, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Delete(ctx context.Context, uid string, fields ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, field := range fields {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM analysis_fields WHERE uid = ? AND field = ?`, uid, field); err != nil {
			return fmt.Errorf("failed to delete session field %s: %w", field, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analysis_fields WHERE uid IN (
			SELECT uid FROM analysis_fields GROUP BY uid HAVING MAX(updated_at) < ?
		)`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
