// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/aurasense/companion/internal/domain"
)

// ErrVersionConflict is returned when a save races with another writer for
// the same session key. The caller should reload and retry the turn.
var ErrVersionConflict = errors.New("session version conflict")

// Store defines durable, keyed persistence for onboarding sessions.
// Save must be an atomic read-modify-write per session key: a session with
// Version 0 is inserted, anything else replaces the stored row only if the
// stored version matches, bumping Version on success.
type Store interface {
	// Load retrieves a session by ID. Returns domain.ErrSessionNotFound
	// if no session matches.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Save persists a session using optimistic versioning (see above).
	Save(ctx context.Context, session *domain.Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// ActiveForUser returns the user's non-terminal session, or nil.
	ActiveForUser(ctx context.Context, userID string) (*domain.Session, error)

	// SweepExpired aborts non-terminal sessions idle longer than ttl and
	// removes terminal sessions idle longer than retention.
	SweepExpired(ctx context.Context, ttl, retention time.Duration) (aborted, deleted int64, err error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
