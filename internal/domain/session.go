// Package domain contains core domain types for the companion dialogue core.
package domain

import (
	"time"
)

// Profile maps field names to accepted, validated values.
// A field, once accepted, is only ever overwritten by a later valid value.
type Profile map[string]any

// Clone returns a copy of the profile. Values are JSON scalars or string
// slices, so a per-field copy is enough for our callers.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		if list, ok := v.([]string); ok {
			out[k] = append([]string(nil), list...)
			continue
		}
		out[k] = v
	}
	return out
}

// Session is one user's in-flight or completed onboarding interaction.
type Session struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	State        DialogueState  `json:"state"`
	Profile      Profile        `json:"profile"`
	PromptLog    []string       `json:"prompt_log"`
	PromptCounts map[string]int `json:"prompt_counts"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	// Version is bumped by the store on every successful save and used
	// for optimistic concurrency. Zero means "never persisted".
	Version int64 `json:"version"`
}

// RecordPrompt appends a field name to the prompt log and bumps its count.
func (s *Session) RecordPrompt(field string) {
	s.PromptLog = append(s.PromptLog, field)
	if s.PromptCounts == nil {
		s.PromptCounts = make(map[string]int)
	}
	s.PromptCounts[field]++
}

// PromptedWithin returns true if field appears in the last n prompt log
// entries. Used to avoid immediately re-asking a question the user just
// declined to answer.
func (s *Session) PromptedWithin(field string, n int) bool {
	if n <= 0 {
		return false
	}
	start := len(s.PromptLog) - n
	if start < 0 {
		start = 0
	}
	for _, f := range s.PromptLog[start:] {
		if f == field {
			return true
		}
	}
	return false
}

// Expired returns true if the session has been inactive longer than ttl.
func (s *Session) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}

// FieldOutcome records the result of merging one extracted field value.
type FieldOutcome struct {
	Field    string `json:"field"`
	Accepted bool   `json:"accepted"`
	Value    any    `json:"value,omitempty"`
	Rejected any    `json:"rejected_value,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
