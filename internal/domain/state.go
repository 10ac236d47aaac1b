package domain

// DialogueState is the lifecycle state of an onboarding session.
type DialogueState string

const (
	// StateCreated is the initial state, before the first prompt is issued.
	StateCreated DialogueState = "created"
	// StateCollecting means the controller is gathering profile fields.
	StateCollecting DialogueState = "collecting"
	// StateComplete means every required field has an accepted value.
	StateComplete DialogueState = "complete"
	// StateTerminated is the normal terminal state after hand-off.
	StateTerminated DialogueState = "terminated"
	// StateAborted is the terminal state for expired or abandoned sessions.
	StateAborted DialogueState = "aborted"
)

// IsTerminal returns true for states that accept no further transitions.
func (s DialogueState) IsTerminal() bool {
	return s == StateTerminated || s == StateAborted
}

// Valid returns true if s is a known dialogue state.
func (s DialogueState) Valid() bool {
	switch s {
	case StateCreated, StateCollecting, StateComplete, StateTerminated, StateAborted:
		return true
	}
	return false
}

// CanTransition reports whether the transition from → to is legal.
// This is the single source of truth for the dialogue lifecycle; every
// state change in the controller goes through it.
func CanTransition(from, to DialogueState) bool {
	switch from {
	case StateCreated:
		return to == StateCollecting || to == StateTerminated || to == StateAborted
	case StateCollecting:
		return to == StateComplete || to == StateTerminated || to == StateAborted
	case StateComplete:
		return to == StateTerminated
	case StateTerminated, StateAborted:
		return false
	}
	return false
}
