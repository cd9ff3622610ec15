package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the rate-limit table in PostgreSQL for deployments
// that already run one.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rate_limits (
			user_id TEXT PRIMARY KEY,
			window_start BIGINT NOT NULL,
			count INTEGER NOT NULL
		);`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init rate limit schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (Record, bool, error) {
	var (
		rec     Record
		startMs int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, window_start, count FROM rate_limits WHERE user_id = $1`,
		userID,
	).Scan(&rec.UserID, &startMs, &rec.Count)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get rate limit: %w", err)
	}
	rec.WindowStart = fromMillis(startMs)
	return rec, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rate_limits (user_id, window_start, count) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET window_start = EXCLUDED.window_start, count = EXCLUDED.count`,
		rec.UserID, rec.WindowStart.UnixMilli(), rec.Count,
	)
	if err != nil {
		return fmt.Errorf("put rate limit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
