package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aurasense/companion/internal/schema"
)

var testFields = []schema.Field{
	{Name: "age", Kind: schema.KindIntRange, Min: 0, Max: 120},
	{Name: "dietary_restrictions", Kind: schema.KindStringList},
}

func newTestExtractor(t *testing.T, url string, timeout time.Duration) *HTTPExtractor {
	t.Helper()
	e, err := NewHTTPExtractor(HTTPExtractorConfig{URL: url, Timeout: timeout}, nil)
	if err != nil {
		t.Fatalf("NewHTTPExtractor failed: %v", err)
	}
	return e
}

func TestExtractSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Text != "I am 29" {
			t.Errorf("expected utterance in request, got %q", req.Text)
		}
		if len(req.Fields) != 2 {
			t.Errorf("expected field schema in request, got %d entries", len(req.Fields))
		}
		_ = json.NewEncoder(w).Encode(extractResponse{Fields: map[string]any{"age": 29}})
	}))
	defer srv.Close()

	e := newTestExtractor(t, srv.URL, time.Second)
	res := e.Extract(context.Background(), "I am 29", testFields)

	if res.Degraded {
		t.Fatal("expected non-degraded result")
	}
	if got, ok := res.Fields["age"].(float64); !ok || got != 29 {
		t.Errorf("expected age 29 in result, got %v", res.Fields["age"])
	}
}

func TestExtractBlankTextSkipsUpstream(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	e := newTestExtractor(t, srv.URL, time.Second)
	res := e.Extract(context.Background(), "   \t\n", testFields)

	if called {
		t.Error("blank text must not hit the NLU service")
	}
	if !res.Empty() || res.Degraded {
		t.Errorf("expected empty non-degraded result, got %+v", res)
	}
}

func TestExtractTimeoutDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	e := newTestExtractor(t, srv.URL, 20*time.Millisecond)
	res := e.Extract(context.Background(), "I am 29", testFields)

	if !res.Degraded {
		t.Error("expected degraded result on timeout")
	}
	if !res.Empty() {
		t.Errorf("expected empty result on timeout, got %v", res.Fields)
	}
}

func TestExtractUpstreamErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestExtractor(t, srv.URL, time.Second)
	res := e.Extract(context.Background(), "I am 29", testFields)

	if !res.Degraded || !res.Empty() {
		t.Errorf("expected empty degraded result, got %+v", res)
	}
}

func TestNewHTTPExtractorRequiresURL(t *testing.T) {
	if _, err := NewHTTPExtractor(HTTPExtractorConfig{}, nil); err == nil {
		t.Error("expected error for missing URL")
	}
}
