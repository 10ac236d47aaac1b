// Package dialogue drives the multi-turn onboarding conversation: it owns
// the session lifecycle state machine, asks for missing profile fields and
// persists every transition before returning.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurasense/companion/internal/domain"
	"github.com/aurasense/companion/internal/extract"
	"github.com/aurasense/companion/internal/profile"
	"github.com/aurasense/companion/internal/schema"
	"github.com/aurasense/companion/internal/store"
)

const (
	completionMessage = "Perfect! We have all the information we need to personalize your experience."
	handoffMessage    = "You're all set. Proceeding to your main experience."
	degradedPrefix    = "Sorry, I didn't catch that. "
)

// Config holds the controller's tunable policy.
type Config struct {
	// SessionTTL is the inactivity window after which a session is
	// treated as aborted on next access.
	SessionTTL time.Duration
	// RepromptWindow suppresses re-asking a field prompted within the
	// last N turns, unless that field just failed validation.
	RepromptWindow int
	// EscalateAfter switches to the field's hint prompt once the field
	// has been asked this many times.
	EscalateAfter int
}

// DefaultConfig returns the default controller policy.
func DefaultConfig() Config {
	return Config{
		SessionTTL:     30 * time.Minute,
		RepromptWindow: 2,
		EscalateAfter:  3,
	}
}

// Controller is the orchestration core for onboarding sessions.
type Controller struct {
	store     store.Store
	reg       *schema.Registry
	acc       *profile.Accumulator
	extractor extract.Extractor
	cfg       Config
	locks     *keyMutex
	logger    *slog.Logger
}

// NewController wires the controller with its collaborators.
func NewController(st store.Store, reg *schema.Registry, extractor extract.Extractor, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RepromptWindow < 0 {
		cfg.RepromptWindow = 0
	}
	return &Controller{
		store:     st,
		reg:       reg,
		acc:       profile.NewAccumulator(reg),
		extractor: extractor,
		cfg:       cfg,
		locks:     newKeyMutex(),
		logger:    logger,
	}
}

// TurnResponse is what a start or submit turn returns to the transport.
type TurnResponse struct {
	SessionID  string                `json:"session_id"`
	Message    string                `json:"message"`
	State      domain.DialogueState  `json:"state"`
	Completion float64               `json:"completion"`
	Accepted   []string              `json:"accepted_fields,omitempty"`
	Outcomes   []domain.FieldOutcome `json:"outcomes,omitempty"`
}

// Handoff is the stop response directing the caller to the main experience.
type Handoff struct {
	SessionID string               `json:"session_id"`
	Message   string               `json:"message"`
	State     domain.DialogueState `json:"state"`
}

// Start creates a new onboarding session for the user and returns the first
// prompt. Fails with SessionCreationError while the user still has a live
// non-terminal session.
func (c *Controller) Start(ctx context.Context, userID string) (*TurnResponse, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	// Serialize per user so two racing starts cannot both pass the
	// active-session check.
	c.locks.Lock("user:" + userID)
	defer c.locks.Unlock("user:" + userID)

	active, err := c.store.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("look up active session: %w", err)
	}
	now := time.Now()
	if active != nil {
		if !active.Expired(c.cfg.SessionTTL, now) {
			return nil, &domain.SessionCreationError{UserID: userID, ExistingSessionID: active.ID}
		}
		// The previous session sat idle past the TTL; abort it so a
		// fresh start is possible.
		if err := c.abort(ctx, active, now); err != nil {
			return nil, err
		}
	}

	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		State:     domain.StateCreated,
		Profile:   domain.Profile{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.transition(session, domain.StateCollecting); err != nil {
		return nil, err
	}

	// A schema with no required fields leaves nothing to collect.
	var message string
	if c.acc.Complete(session.Profile) {
		if err := c.transition(session, domain.StateComplete); err != nil {
			return nil, err
		}
		message = completionMessage
	} else {
		first := c.acc.MissingRequired(session.Profile)[0]
		message = c.promptFor(session, first)
		session.RecordPrompt(first.Name)
	}

	if err := c.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}

	c.logger.Info("onboarding session started", "session_id", session.ID, "user_id", userID)
	return &TurnResponse{
		SessionID:  session.ID,
		Message:    message,
		State:      session.State,
		Completion: c.acc.Completion(session.Profile),
	}, nil
}

// Submit processes one user turn: extract, merge, recompute and prompt.
// Only valid while the session is collecting.
func (c *Controller) Submit(ctx context.Context, sessionID, text string) (*TurnResponse, error) {
	c.locks.Lock(sessionID)
	defer c.locks.Unlock(sessionID)

	session, err := c.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !session.State.IsTerminal() && session.Expired(c.cfg.SessionTTL, now) {
		if err := c.abort(ctx, session, now); err != nil {
			return nil, err
		}
		return nil, &domain.InvalidStateError{SessionID: sessionID, State: session.State, Operation: "submit"}
	}
	if session.State != domain.StateCollecting {
		return nil, &domain.InvalidStateError{SessionID: sessionID, State: session.State, Operation: "submit"}
	}

	result := c.extractor.Extract(ctx, text, c.reg.Fields())
	if result.Degraded {
		c.logger.Warn("extraction degraded, treating turn as no new information", "session_id", sessionID)
	}

	updated, outcomes, err := c.acc.Merge(session.Profile, result.Fields)
	if err != nil {
		// Adapter/schema drift. Nothing is persisted.
		c.logger.Error("extraction schema violation", "session_id", sessionID, "error", err)
		return nil, err
	}
	session.Profile = updated

	var accepted []string
	for _, o := range outcomes {
		if o.Accepted {
			accepted = append(accepted, o.Field)
		}
	}

	completion := c.acc.Completion(session.Profile)
	var message string
	if c.acc.Complete(session.Profile) {
		if err := c.transition(session, domain.StateComplete); err != nil {
			return nil, err
		}
		message = completionMessage
	} else {
		next := c.nextField(session, outcomes)
		message = c.promptFor(session, next)
		if result.Degraded {
			message = degradedPrefix + message
		}
		session.RecordPrompt(next.Name)
	}

	session.UpdatedAt = now
	if err := c.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("persist session turn: %w", err)
	}

	return &TurnResponse{
		SessionID:  session.ID,
		Message:    message,
		State:      session.State,
		Completion: completion,
		Accepted:   accepted,
		Outcomes:   outcomes,
	}, nil
}

// Stop terminates a session and hands the user off to the main experience.
// Idempotent: stopping a terminated session returns the same hand-off.
func (c *Controller) Stop(ctx context.Context, sessionID string) (*Handoff, error) {
	c.locks.Lock(sessionID)
	defer c.locks.Unlock(sessionID)

	session, err := c.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.State == domain.StateTerminated {
		return &Handoff{SessionID: session.ID, Message: handoffMessage, State: session.State}, nil
	}
	if session.State == domain.StateAborted {
		return nil, &domain.InvalidStateError{SessionID: sessionID, State: session.State, Operation: "stop"}
	}

	now := time.Now()
	if session.Expired(c.cfg.SessionTTL, now) {
		if err := c.abort(ctx, session, now); err != nil {
			return nil, err
		}
		return nil, &domain.InvalidStateError{SessionID: sessionID, State: session.State, Operation: "stop"}
	}

	if err := c.transition(session, domain.StateTerminated); err != nil {
		return nil, err
	}
	session.UpdatedAt = now
	if err := c.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("persist terminated session: %w", err)
	}

	c.logger.Info("onboarding session stopped", "session_id", session.ID, "state", session.State)
	return &Handoff{SessionID: session.ID, Message: handoffMessage, State: session.State}, nil
}

// nextField selects the field to prompt. A field whose value was just
// rejected is re-asked before anything else, to resolve the ambiguity while
// it is fresh; otherwise missing fields are taken in declaration order,
// skipping ones prompted within the re-prompt window.
func (c *Controller) nextField(session *domain.Session, outcomes []domain.FieldOutcome) schema.Field {
	missing := c.acc.MissingRequired(session.Profile)

	rejected := make(map[string]bool)
	for _, o := range outcomes {
		if !o.Accepted {
			rejected[o.Field] = true
		}
	}
	for _, f := range missing {
		if rejected[f.Name] {
			return f
		}
	}

	for _, f := range missing {
		if !session.PromptedWithin(f.Name, c.cfg.RepromptWindow) {
			return f
		}
	}

	// Everything still missing was asked recently; fall back to the
	// first one rather than staying silent.
	return missing[0]
}

// promptFor returns the question text for a field, escalating to the hint
// once the field has been asked EscalateAfter times.
func (c *Controller) promptFor(session *domain.Session, f schema.Field) string {
	if c.cfg.EscalateAfter > 0 && f.Hint != "" && session.PromptCounts[f.Name] >= c.cfg.EscalateAfter {
		return f.Prompt + " " + f.Hint
	}
	return f.Prompt
}

func (c *Controller) transition(session *domain.Session, to domain.DialogueState) error {
	if !domain.CanTransition(session.State, to) {
		return fmt.Errorf("illegal transition %s -> %s for session %s", session.State, to, session.ID)
	}
	session.State = to
	return nil
}

func (c *Controller) abort(ctx context.Context, session *domain.Session, now time.Time) error {
	if err := c.transition(session, domain.StateAborted); err != nil {
		return err
	}
	session.UpdatedAt = now
	if err := c.store.Save(ctx, session); err != nil {
		return fmt.Errorf("persist aborted session: %w", err)
	}
	c.logger.Info("session aborted after inactivity", "session_id", session.ID, "user_id", session.UserID)
	return nil
}
