// Package schema declares the profile fields the onboarding dialogue
// collects. The registry is loaded once at process start and is immutable
// afterwards, so unsynchronized concurrent reads are safe.
package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the value shape of a field.
type Kind string

const (
	KindString     Kind = "string"
	KindStringList Kind = "string_list"
	KindIntRange   Kind = "int_range"
	KindEnum       Kind = "enum"
	KindBool       Kind = "bool"
)

// Field is one declared profile field. Immutable after load.
type Field struct {
	Name     string   `yaml:"name"`
	Prompt   string   `yaml:"prompt"`
	Hint     string   `yaml:"hint"`
	Required bool     `yaml:"required"`
	Kind     Kind     `yaml:"kind"`
	Min      int      `yaml:"min"`
	Max      int      `yaml:"max"`
	Values   []string `yaml:"values"`
}

// Registry holds the declared fields in declaration order.
type Registry struct {
	fields []Field
	byName map[string]int
}

// NewRegistry builds a registry from field definitions, preserving order.
func NewRegistry(fields []Field) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(fields))}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field with empty name")
		}
		if _, dup := r.byName[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		if err := validateDef(f); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		r.byName[f.Name] = len(r.fields)
		r.fields = append(r.fields, f)
	}
	if len(r.fields) == 0 {
		return nil, fmt.Errorf("registry needs at least one field")
	}
	return r, nil
}

func validateDef(f Field) error {
	switch f.Kind {
	case KindString, KindStringList, KindBool:
		return nil
	case KindIntRange:
		if f.Min > f.Max {
			return fmt.Errorf("min %d > max %d", f.Min, f.Max)
		}
		return nil
	case KindEnum:
		if len(f.Values) == 0 {
			return fmt.Errorf("enum needs values")
		}
		return nil
	default:
		return fmt.Errorf("unknown kind %q", f.Kind)
	}
}

// Fields returns all fields in declaration order.
func (r *Registry) Fields() []Field {
	return r.fields
}

// Required returns the required fields in declaration order.
func (r *Registry) Required() []Field {
	var out []Field
	for _, f := range r.fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// Lookup returns the field definition for name.
func (r *Registry) Lookup(name string) (Field, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Field{}, false
	}
	return r.fields[i], true
}

// Validate checks a candidate value against the field's shape and returns
// the normalized value to store. Extraction results arrive JSON-decoded, so
// numbers are float64 and lists are []any; validation normalizes them.
func (f Field) Validate(raw any) (any, error) {
	switch f.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("expected a non-empty string")
		}
		return strings.TrimSpace(s), nil

	case KindStringList:
		return normalizeStringList(raw)

	case KindIntRange:
		n, err := normalizeInt(raw)
		if err != nil {
			return nil, err
		}
		if n < f.Min || n > f.Max {
			return nil, fmt.Errorf("value %d out of range %d-%d", n, f.Min, f.Max)
		}
		return n, nil

	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected one of %s", strings.Join(f.Values, ", "))
		}
		for _, v := range f.Values {
			if strings.EqualFold(strings.TrimSpace(s), v) {
				return v, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %s", s, strings.Join(f.Values, ", "))

	case KindBool:
		return normalizeBool(raw)
	}
	return nil, fmt.Errorf("unknown kind %q", f.Kind)
}

func normalizeStringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("expected a non-empty list")
		}
		return []string{strings.TrimSpace(v)}, nil
	case []string:
		if len(v) == 0 {
			return nil, fmt.Errorf("expected a non-empty list")
		}
		out := make([]string, 0, len(v))
		for _, item := range v {
			if strings.TrimSpace(item) == "" {
				return nil, fmt.Errorf("list contains an empty entry")
			}
			out = append(out, strings.TrimSpace(item))
		}
		return out, nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("expected a non-empty list")
		}
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return nil, fmt.Errorf("list entries must be non-empty strings")
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of strings")
}

func normalizeInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected a whole number, got %v", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected a number")
}

func normalizeBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y":
			return true, nil
		case "false", "no", "n":
			return false, nil
		}
		return false, fmt.Errorf("expected yes or no, got %q", v)
	}
	return false, fmt.Errorf("expected yes or no")
}
