package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/aurasense/companion/internal/dialogue"
	"github.com/aurasense/companion/internal/domain"
	"github.com/aurasense/companion/internal/extract"
	"github.com/aurasense/companion/internal/router"
	"github.com/aurasense/companion/internal/schema"
	"github.com/aurasense/companion/internal/store"
)

type scriptedExtractor map[string]extract.Result

func (s scriptedExtractor) Extract(ctx context.Context, text string, fields []schema.Field) extract.Result {
	return s[text]
}

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry([]schema.Field{
		{Name: "age", Prompt: "How old are you?", Required: true, Kind: schema.KindIntRange, Min: 0, Max: 120},
		{Name: "dietary_restrictions", Prompt: "Any dietary restrictions?", Required: true, Kind: schema.KindStringList},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func newTestServer(t *testing.T, script scriptedExtractor) *httptest.Server {
	t.Helper()

	controller := dialogue.NewController(store.NewMemory(), testRegistry(t), script, dialogue.DefaultConfig(), nil)

	routing := router.NewRegistry(router.NewRouter(1))
	routing.Register(domain.DomainFood, router.HandlerFunc(func(ctx context.Context, text string, userCtx domain.UserContext) (string, error) {
		return "food handler reply", nil
	}))
	routing.Register(domain.DomainGeneral, router.HandlerFunc(func(ctx context.Context, text string, userCtx domain.UserContext) (string, error) {
		return "general reply", nil
	}))

	r := chi.NewRouter()
	NewHandler(controller, routing).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func TestOnboardingLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, scriptedExtractor{
		"I am 29":    {Fields: map[string]any{"age": float64(29)}},
		"vegetarian": {Fields: map[string]any{"dietary_restrictions": []any{"vegetarian"}}},
	})

	resp, start := postJSON(t, srv.URL+"/onboarding/start", map[string]string{"user_id": "u1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	sessionID, _ := start["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("missing session_id in %v", start)
	}
	if start["message"] != "How old are you?" {
		t.Errorf("unexpected first prompt %v", start["message"])
	}

	resp, turn := postJSON(t, srv.URL+"/onboarding/turn", map[string]string{"session_id": sessionID, "text": "I am 29"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("turn status = %d", resp.StatusCode)
	}
	if turn["completion"] != 50.0 {
		t.Errorf("expected completion 50, got %v", turn["completion"])
	}
	accepted, _ := turn["accepted_fields"].([]any)
	if len(accepted) != 1 || accepted[0] != "age" {
		t.Errorf("unexpected accepted fields %v", turn["accepted_fields"])
	}

	resp, turn = postJSON(t, srv.URL+"/onboarding/turn", map[string]string{"session_id": sessionID, "text": "vegetarian"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("turn status = %d", resp.StatusCode)
	}
	if turn["state"] != string(domain.StateComplete) {
		t.Errorf("expected complete, got %v", turn["state"])
	}

	resp, stop := postJSON(t, srv.URL+"/onboarding/stop", map[string]string{"session_id": sessionID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d", resp.StatusCode)
	}
	if stop["state"] != string(domain.StateTerminated) {
		t.Errorf("expected terminated, got %v", stop["state"])
	}

	// Submitting after stop is a lifecycle conflict.
	resp, _ = postJSON(t, srv.URL+"/onboarding/turn", map[string]string{"session_id": sessionID, "text": "I am 29"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 after stop, got %d", resp.StatusCode)
	}
}

func TestStartConflictAndValidation(t *testing.T) {
	srv := newTestServer(t, scriptedExtractor{})

	resp, _ := postJSON(t, srv.URL+"/onboarding/start", map[string]string{"user_id": "u1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status = %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, srv.URL+"/onboarding/start", map[string]string{"user_id": "u1"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate start, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, srv.URL+"/onboarding/start", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing user_id, got %d", resp.StatusCode)
	}
}

func TestTurnUnknownSession(t *testing.T) {
	srv := newTestServer(t, scriptedExtractor{})

	resp, _ := postJSON(t, srv.URL+"/onboarding/turn", map[string]string{"session_id": "nope", "text": "hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMalformedPayload(t *testing.T) {
	srv := newTestServer(t, scriptedExtractor{})

	resp, err := http.Post(srv.URL+"/onboarding/start", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRouteTurn(t *testing.T) {
	srv := newTestServer(t, scriptedExtractor{})

	resp, out := postJSON(t, srv.URL+"/route", map[string]any{
		"text":         "find me a restaurant",
		"user_context": map[string]any{"user_id": "u1"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("route status = %d", resp.StatusCode)
	}
	decision, _ := out["decision"].(map[string]any)
	if decision["domain"] != string(domain.DomainFood) {
		t.Errorf("expected food decision, got %v", decision)
	}
	if out["message"] != "food handler reply" {
		t.Errorf("unexpected message %v", out["message"])
	}

	resp, out = postJSON(t, srv.URL+"/route", map[string]any{
		"text": "what's the weather",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("route status = %d", resp.StatusCode)
	}
	if out["message"] != "general reply" {
		t.Errorf("expected fallback reply, got %v", out["message"])
	}

	resp, _ = postJSON(t, srv.URL+"/route", map[string]any{"text": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for empty text, got %d", resp.StatusCode)
	}
}
