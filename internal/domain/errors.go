package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when no session matches the given ID.
var ErrSessionNotFound = errors.New("session not found")

// SessionCreationError is returned by Start when the user already has an
// active (non-terminal) session. Callers must reuse or stop it first.
type SessionCreationError struct {
	UserID            string
	ExistingSessionID string
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("user %s already has an active session %s", e.UserID, e.ExistingSessionID)
}

// InvalidStateError is returned when an operation is attempted on a session
// whose state does not permit it.
type InvalidStateError struct {
	SessionID string
	State     DialogueState
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("session %s is %s: %s not allowed", e.SessionID, e.State, e.Operation)
}

// SchemaViolationError indicates the extraction adapter referenced a field
// unknown to the registry. This is adapter/schema drift, not user input, and
// must propagate rather than be absorbed.
type SchemaViolationError struct {
	Field string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("extraction referenced undeclared field %q", e.Field)
}
