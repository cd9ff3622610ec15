package thread

import (
	"sync"
)

// Record is what the registry knows about one thread.
type Record struct {
	EngineSessionID string
	Title           string
}

// Registry is an in-process cache of thread → session bindings. The thread
// name remains the durable source of truth; the registry only spares a name
// parse on every follow-up and survives rename failures.
type Registry struct {
	mu       sync.RWMutex
	byThread map[string]*Record
}

func NewRegistry() *Registry {
	return &Registry{byThread: make(map[string]*Record)}
}

// Bind associates a thread with an engine session id. First write wins: a
// thread's session id is immutable once learned. Reports whether the binding
// was applied.
func (r *Registry) Bind(threadID, sessionID string) bool {
	if threadID == "" || sessionID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byThread[threadID]
	if !ok {
		r.byThread[threadID] = &Record{EngineSessionID: sessionID}
		return true
	}
	if rec.EngineSessionID != "" {
		return false
	}
	rec.EngineSessionID = sessionID
	return true
}

// SetTitle records the generated title for a thread. First write wins.
func (r *Registry) SetTitle(threadID, title string) bool {
	if threadID == "" || title == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byThread[threadID]
	if !ok {
		r.byThread[threadID] = &Record{Title: title}
		return true
	}
	if rec.Title != "" {
		return false
	}
	rec.Title = title
	return true
}

// Lookup returns the cached record for a thread.
func (r *Registry) Lookup(threadID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byThread[threadID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Resolve finds the engine session for a thread, preferring the in-process
// cache and falling back to decoding the display name. An empty id with
// ok=false means the query must start a fresh engine session.
func (r *Registry) Resolve(threadID, threadName string) (string, bool) {
	if rec, ok := r.Lookup(threadID); ok && rec.EngineSessionID != "" {
		return rec.EngineSessionID, true
	}
	if id, ok := DecodeSessionID(threadName); ok {
		r.Bind(threadID, id)
		return id, true
	}
	return "", false
}
