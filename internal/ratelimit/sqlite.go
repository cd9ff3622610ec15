package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default single-file backend for the rate-limit table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the rate-limit database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL mode keeps concurrent readers from tripping over the writer.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS rate_limits (
		user_id TEXT PRIMARY KEY,
		window_start INTEGER NOT NULL,
		count INTEGER NOT NULL
	);
	`)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) (Record, bool, error) {
	var (
		rec     Record
		startMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, window_start, count FROM rate_limits WHERE user_id = ?`,
		userID,
	).Scan(&rec.UserID, &startMs, &rec.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get rate limit: %w", err)
	}
	rec.WindowStart = fromMillis(startMs)
	return rec, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_limits (user_id, window_start, count) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET window_start = excluded.window_start, count = excluded.count`,
		rec.UserID, rec.WindowStart.UnixMilli(), rec.Count,
	)
	if err != nil {
		return fmt.Errorf("put rate limit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
