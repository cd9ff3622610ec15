package ratelimit

import (
	"context"
	"strings"
	"time"
)

// NewStore picks the postgres backend when a database URL is configured,
// otherwise the local sqlite file.
func NewStore(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	return NewSQLiteStore(sqlitePath)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
