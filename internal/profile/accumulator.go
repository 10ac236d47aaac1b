// Package profile merges partial extraction results into a running user
// profile and computes completion.
package profile

import (
	"math"
	"sort"

	"github.com/aurasense/companion/internal/domain"
	"github.com/aurasense/companion/internal/schema"
)

// Accumulator validates extracted field values against the registry and
// folds accepted values into a profile. It holds no mutable state.
type Accumulator struct {
	reg *schema.Registry
}

// NewAccumulator creates an accumulator bound to a field registry.
func NewAccumulator(reg *schema.Registry) *Accumulator {
	return &Accumulator{reg: reg}
}

// Merge validates each extracted field and returns an updated profile plus
// per-field outcomes. Invalid values are outcomes, not errors: the profile
// keeps its previous value for that field. An undeclared field name is a
// SchemaViolationError; the input profile is returned unchanged in that case.
func (a *Accumulator) Merge(p domain.Profile, fields map[string]any) (domain.Profile, []domain.FieldOutcome, error) {
	for name := range fields {
		if _, ok := a.reg.Lookup(name); !ok {
			return p, nil, &domain.SchemaViolationError{Field: name}
		}
	}

	updated := p.Clone()
	if updated == nil {
		updated = make(domain.Profile)
	}

	// Map iteration order is random; process in stable name order so the
	// outcome list is deterministic for a given extraction.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var outcomes []domain.FieldOutcome
	for _, name := range names {
		def, _ := a.reg.Lookup(name)
		value, err := def.Validate(fields[name])
		if err != nil {
			outcomes = append(outcomes, domain.FieldOutcome{
				Field:    name,
				Accepted: false,
				Rejected: fields[name],
				Reason:   err.Error(),
			})
			continue
		}
		// Last valid wins: overwrite whatever was accepted before.
		updated[name] = value
		outcomes = append(outcomes, domain.FieldOutcome{
			Field:    name,
			Accepted: true,
			Value:    value,
		})
	}

	return updated, outcomes, nil
}

// Completion returns the percentage of required fields with an accepted
// value, rounded to one decimal place.
func (a *Accumulator) Completion(p domain.Profile) float64 {
	required := a.reg.Required()
	if len(required) == 0 {
		return 100.0
	}
	accepted := 0
	for _, f := range required {
		if _, ok := p[f.Name]; ok {
			accepted++
		}
	}
	pct := float64(accepted) / float64(len(required)) * 100
	return math.Round(pct*10) / 10
}

// MissingRequired returns required fields without an accepted value, in
// declaration order.
func (a *Accumulator) MissingRequired(p domain.Profile) []schema.Field {
	var out []schema.Field
	for _, f := range a.reg.Required() {
		if _, ok := p[f.Name]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// Complete returns true once every required field has an accepted value.
func (a *Accumulator) Complete(p domain.Profile) bool {
	return len(a.MissingRequired(p)) == 0
}
