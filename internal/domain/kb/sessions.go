package kb

import (
	"sync"
	"time"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
)

// sessionTTL is how long a finished or abandoned streaming session is kept
// around for late GETs before it expires.
const sessionTTL = 1800 * time.Second

// sessionRegistry is an in-process map of in-flight and recently finished
// streaming answers (C7). It never touches the shared StatusStore: sessions
// are local to the process instance that owns the SSE connection.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*entities.StreamingSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: map[string]*entities.StreamingSession{}}
}

// create registers a new session for sessionID, overwriting any stale entry
// left behind under the same id.
func (r *sessionRegistry) create(sessionID string, query entities.QueryRequest, now time.Time) *entities.StreamingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &entities.StreamingSession{
		SessionID: sessionID,
		Query:     query,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	r.sessions[sessionID] = s
	return s
}

// appendToken updates a session's accumulated content; it is a no-op if the
// session has already been removed (e.g. the client disconnected).
func (r *sessionRegistry) appendToken(sessionID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.CurrentContent += token
	}
}

// complete marks a session finished, with err set if the stream ended in
// failure, and refreshes its expiry so a client can still fetch the final
// content shortly after completion.
func (r *sessionRegistry) complete(sessionID string, err error, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.IsComplete = true
		s.Err = err
		s.ExpiresAt = now.Add(sessionTTL)
	}
}

// get returns the session's current snapshot, or ok=false if absent or
// expired as of now.
func (r *sessionRegistry) get(sessionID string, now time.Time) (entities.StreamingSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || now.After(s.ExpiresAt) {
		return entities.StreamingSession{}, false
	}
	return *s, true
}

// remove deletes a session outright, used when a client explicitly tears
// down its stream.
func (r *sessionRegistry) remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// sweepExpired drops every session past its expiry; called periodically by
// the same janitor goroutine that sweeps orphaned "initializing" KBs.
func (r *sessionRegistry) sweepExpired(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if now.After(s.ExpiresAt) {
			delete(r.sessions, id)
		}
	}
}
