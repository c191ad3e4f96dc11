// Package session tracks which connections have joined, under which username,
// and which room each one currently occupies. It is the source of truth for
// presence and performs no broadcasting of its own.
package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nfrund/huddle/internal/domain"
)

// Registry maps session ids to joined sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for JoinedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]domain.Session),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default().With("component", "session"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records a joined session. A second registration for the same id
// fails with domain.ErrDuplicateSession.
func (r *Registry) Register(sessionID, username, room string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; exists {
		r.logger.Warn("Duplicate session registration", "session_id", sessionID)
		return domain.Session{}, domain.ErrDuplicateSession
	}

	s := domain.Session{
		ID:          sessionID,
		Username:    username,
		CurrentRoom: room,
		JoinedAt:    r.now(),
	}
	r.sessions[sessionID] = s
	r.logger.Debug("Session registered", "session_id", sessionID, "username", username, "room", room)
	return s, nil
}

// Lookup returns the session for id, if it has joined.
func (r *Registry) Lookup(sessionID string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	return s, ok
}

// SetRoom moves a session to room and returns the updated session. It reports
// false when the session is not registered.
func (r *Registry) SetRoom(sessionID, room string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.Session{}, false
	}
	s.CurrentRoom = room
	r.sessions[sessionID] = s
	return s, true
}

// Remove deletes a session and returns what was removed. Removing an unknown
// id is a no-op that reports false.
func (r *Registry) Remove(sessionID string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
		r.logger.Debug("Session removed", "session_id", sessionID, "username", s.Username)
	}
	return s, ok
}

// All returns every joined session ordered by join time.
func (r *Registry) All() []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collectUnsafe(func(domain.Session) bool { return true })
}

// InRoom returns the sessions whose current room is room.
func (r *Registry) InRoom(room string) []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collectUnsafe(func(s domain.Session) bool { return s.CurrentRoom == room })
}

// Len returns the number of joined sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// collectUnsafe filters sessions without acquiring the lock (internal use)
func (r *Registry) collectUnsafe(keep func(domain.Session) bool) []domain.Session {
	result := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if keep(s) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].JoinedAt.Equal(result[j].JoinedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result
}

// IDs extracts the session ids of sessions.
func IDs(sessions []domain.Session) []string {
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}
