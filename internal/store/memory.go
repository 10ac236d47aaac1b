package store

import (
	"context"
	"sync"
	"time"

	"github.com/aurasense/companion/internal/domain"
)

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.Session)}
}

// Load retrieves a session by ID.
func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := cloneSession(s)
	return &copied, nil
}

// Save persists a session with optimistic versioning.
func (m *MemoryStore) Save(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.sessions[session.ID]
	if exists {
		if stored.Version != session.Version {
			return ErrVersionConflict
		}
	} else if session.Version != 0 {
		return ErrVersionConflict
	}

	session.Version++
	m.sessions[session.ID] = cloneSession(*session)
	return nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// ActiveForUser returns the user's non-terminal session, or nil.
func (m *MemoryStore) ActiveForUser(ctx context.Context, userID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		if s.UserID == userID && !s.State.IsTerminal() {
			copied := cloneSession(s)
			return &copied, nil
		}
	}
	return nil, nil
}

// SweepExpired aborts idle non-terminal sessions and drops old terminal ones.
func (m *MemoryStore) SweepExpired(ctx context.Context, ttl, retention time.Duration) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var aborted, deleted int64
	for id, s := range m.sessions {
		switch {
		case !s.State.IsTerminal() && s.Expired(ttl, now):
			s.State = domain.StateAborted
			s.UpdatedAt = now
			s.Version++
			m.sessions[id] = s
			aborted++
		case s.State.IsTerminal() && retention > 0 && now.Sub(s.UpdatedAt) > retention:
			delete(m.sessions, id)
			deleted++
		}
	}
	return aborted, deleted, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func cloneSession(s domain.Session) domain.Session {
	out := s
	out.Profile = s.Profile.Clone()
	out.PromptLog = append([]string(nil), s.PromptLog...)
	if s.PromptCounts != nil {
		out.PromptCounts = make(map[string]int, len(s.PromptCounts))
		for k, v := range s.PromptCounts {
			out.PromptCounts[k] = v
		}
	}
	return out
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
