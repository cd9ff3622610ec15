// Package ratelimit enforces a durable per-user sliding request window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// Window is the sliding approval window length.
	Window = time.Hour
	// MaxPerWindow is the number of requests admitted per window.
	MaxPerWindow = 20
)

// Record is one user's persisted counter state.
type Record struct {
	UserID      string
	WindowStart time.Time
	Count       int
}

// Store persists rate-limit records across restarts. Rows are never deleted;
// stale rows reset on next use.
type Store interface {
	Get(ctx context.Context, userID string) (Record, bool, error)
	Put(ctx context.Context, rec Record) error
	Close() error
}

// Limiter implements the sliding approval counter. Access is serialized
// globally so two concurrent queries from one user cannot both take the last
// slot; expected load makes a single mutex sufficient.
type Limiter struct {
	mu     sync.Mutex
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewLimiter(store Store) *Limiter {
	return &Limiter{
		store:  store,
		limit:  MaxPerWindow,
		window: Window,
		now:    time.Now,
	}
}

// TryConsume reports whether the user may issue another request, updating the
// persisted counter when it admits one. The window slides on every accepted
// request rather than staying fixed to the first one. A denial leaves state
// untouched.
func (l *Limiter) TryConsume(ctx context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	rec, found, err := l.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}

	if !found || now.Sub(rec.WindowStart) > l.window {
		rec = Record{UserID: userID, WindowStart: now, Count: 1}
		if err := l.store.Put(ctx, rec); err != nil {
			return false, err
		}
		return true, nil
	}

	if rec.Count >= l.limit {
		return false, nil
	}

	rec.Count++
	rec.WindowStart = now
	if err := l.store.Put(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}
