package router

import (
	"context"
	"errors"
	"testing"

	"github.com/aurasense/companion/internal/domain"
)

func TestRouteByKeywords(t *testing.T) {
	r := NewRouter(1)
	ctx := context.Background()

	cases := []struct {
		text string
		want domain.CapabilityDomain
	}{
		{"I'm hungry, find me a restaurant", domain.DomainFood},
		{"book a hotel for my trip next week", domain.DomainTravel},
		{"any events where I can meet people?", domain.DomainSocial},
		{"update my allergies in my profile", domain.DomainProfile},
		{"what's the weather like", domain.DomainGeneral},
		{"", domain.DomainGeneral},
	}

	for _, tc := range cases {
		got := r.Route(ctx, tc.text, domain.UserContext{})
		if got.Domain != tc.want {
			t.Errorf("Route(%q) = %s, want %s", tc.text, got.Domain, tc.want)
		}
		if got.Fallback != domain.DomainGeneral {
			t.Errorf("Route(%q) fallback = %s, want general", tc.text, got.Fallback)
		}
	}
}

func TestRouteRationaleAndScore(t *testing.T) {
	r := NewRouter(1)

	got := r.Route(context.Background(), "order spicy food for dinner", domain.UserContext{})
	if got.Domain != domain.DomainFood {
		t.Fatalf("expected food, got %s", got.Domain)
	}
	if got.Score != 4 {
		t.Errorf("expected score 4, got %d", got.Score)
	}
	want := map[string]bool{"order": true, "spicy": true, "food": true, "dinner": true}
	if len(got.Rationale) != len(want) {
		t.Fatalf("unexpected rationale: %v", got.Rationale)
	}
	for _, kw := range got.Rationale {
		if !want[kw] {
			t.Errorf("unexpected rationale keyword %q", kw)
		}
	}
}

func TestRouteTieBreaksByPriority(t *testing.T) {
	r := NewRouter(1)

	// One food keyword and one travel keyword: food wins by declared order.
	got := r.Route(context.Background(), "restaurant near my hotel", domain.UserContext{})
	if got.Domain != domain.DomainFood {
		t.Errorf("expected food on tie, got %s (score %d)", got.Domain, got.Score)
	}
}

func TestRouteBelowThresholdFallsBack(t *testing.T) {
	r := NewRouter(2)

	got := r.Route(context.Background(), "I want to eat", domain.UserContext{})
	if got.Domain != domain.DomainGeneral {
		t.Errorf("expected fallback below threshold, got %s", got.Domain)
	}
	if got.Score != 1 {
		t.Errorf("expected score 1, got %d", got.Score)
	}
}

func TestRouteMatchesWholeWordsOnly(t *testing.T) {
	r := NewRouter(1)

	// "meatball" must not match "eat".
	got := r.Route(context.Background(), "meatball", domain.UserContext{})
	if got.Domain != domain.DomainGeneral {
		t.Errorf("substring matched as keyword: %s", got.Domain)
	}
}

func TestDispatch(t *testing.T) {
	reg := NewRegistry(NewRouter(1))
	ctx := context.Background()

	reg.Register(domain.DomainFood, HandlerFunc(func(ctx context.Context, text string, userCtx domain.UserContext) (string, error) {
		return "here are some restaurants for " + userCtx.UserID, nil
	}))
	reg.Register(domain.DomainGeneral, HandlerFunc(func(ctx context.Context, text string, userCtx domain.UserContext) (string, error) {
		return "general response", nil
	}))

	decision, resp, err := reg.Dispatch(ctx, "find me a restaurant", domain.UserContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if decision.Domain != domain.DomainFood {
		t.Errorf("expected food, got %s", decision.Domain)
	}
	if resp != "here are some restaurants for u1" {
		t.Errorf("unexpected response %q", resp)
	}

	// No travel handler registered: dispatch falls back to general.
	decision, resp, err = reg.Dispatch(ctx, "book a flight", domain.UserContext{})
	if err != nil {
		t.Fatalf("dispatch fallback: %v", err)
	}
	if decision.Domain != domain.DomainTravel {
		t.Errorf("decision should still name travel, got %s", decision.Domain)
	}
	if resp != "general response" {
		t.Errorf("expected fallback response, got %q", resp)
	}
}

func TestDispatchNoHandlers(t *testing.T) {
	reg := NewRegistry(NewRouter(1))

	_, _, err := reg.Dispatch(context.Background(), "hello there", domain.UserContext{})
	if err == nil {
		t.Fatal("expected error with no handlers registered")
	}
}

func TestDispatchHandlerError(t *testing.T) {
	reg := NewRegistry(NewRouter(1))
	sentinel := errors.New("downstream unavailable")
	reg.Register(domain.DomainGeneral, HandlerFunc(func(ctx context.Context, text string, userCtx domain.UserContext) (string, error) {
		return "", sentinel
	}))

	_, _, err := reg.Dispatch(context.Background(), "hello", domain.UserContext{})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped handler error, got %v", err)
	}
}
