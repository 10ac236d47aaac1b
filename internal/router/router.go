// Package router classifies steady-state conversation turns into capability
// domains and dispatches them to registered handlers. Routing is pure keyword
// scoring; it holds no session state.
package router

import (
	"context"
	"sort"
	"strings"

	"github.com/aurasense/companion/internal/domain"
)

// domainKeywords maps each capability domain to the terms that vote for it.
// Matching is case-insensitive on whole words.
var domainKeywords = map[domain.CapabilityDomain][]string{
	domain.DomainFood: {
		"eat", "food", "hungry", "restaurant", "restaurants", "order",
		"menu", "dish", "cuisine", "lunch", "dinner", "breakfast",
		"snack", "delivery", "takeout", "spicy", "vegetarian", "vegan",
	},
	domain.DomainTravel: {
		"travel", "trip", "hotel", "hotels", "flight", "flights",
		"visit", "tour", "sightseeing", "directions", "museum",
		"attraction", "attractions", "itinerary", "stay", "booking",
	},
	domain.DomainSocial: {
		"friend", "friends", "meet", "meetup", "people", "event",
		"events", "party", "group", "community", "chat", "connect",
	},
	domain.DomainProfile: {
		"profile", "preference", "preferences", "allergy", "allergies",
		"update", "change", "settings", "remember", "forget", "account",
	},
}

// domainPriority breaks score ties: earlier wins.
var domainPriority = []domain.CapabilityDomain{
	domain.DomainFood,
	domain.DomainTravel,
	domain.DomainSocial,
	domain.DomainProfile,
}

// Router scores utterances against the domain keyword tables.
type Router struct {
	minScore int
}

// NewRouter builds a router. minScore is the minimum keyword-hit count for a
// domain decision; anything below falls back to the general domain.
func NewRouter(minScore int) *Router {
	if minScore < 1 {
		minScore = 1
	}
	return &Router{minScore: minScore}
}

// Route classifies text into a capability domain. Deterministic for a given
// input; the user context is available for future signals but keyword scoring
// alone decides today.
func (r *Router) Route(ctx context.Context, text string, userCtx domain.UserContext) domain.RoutingDecision {
	words := tokenize(text)

	scores := make(map[domain.CapabilityDomain]int, len(domainKeywords))
	matched := make(map[domain.CapabilityDomain][]string, len(domainKeywords))
	for d, keywords := range domainKeywords {
		for _, kw := range keywords {
			if words[kw] {
				scores[d]++
				matched[d] = append(matched[d], kw)
			}
		}
	}

	best := domain.DomainGeneral
	bestScore := 0
	for _, d := range domainPriority {
		if scores[d] > bestScore {
			best = d
			bestScore = scores[d]
		}
	}

	if bestScore < r.minScore {
		return domain.RoutingDecision{
			Domain:   domain.DomainGeneral,
			Fallback: domain.DomainGeneral,
			Score:    bestScore,
		}
	}

	rationale := matched[best]
	sort.Strings(rationale)
	return domain.RoutingDecision{
		Domain:    best,
		Fallback:  domain.DomainGeneral,
		Score:     bestScore,
		Rationale: rationale,
	}
}

// tokenize lowercases and splits on non-letter/digit runes, returning a word
// presence set.
func tokenize(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		words[f] = true
	}
	return words
}
