package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"text":"I am 29"}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	tr, err := NewHTTPTranscriber(srv.URL, "key", 0)
	if err != nil {
		t.Fatalf("create transcriber: %v", err)
	}

	text, err := tr.Transcribe(context.Background(), []byte("fake audio"))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "I am 29" {
		t.Errorf("unexpected transcript %q", text)
	}
}

func TestTranscribeFailuresAreTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no speech detected", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	tr, err := NewHTTPTranscriber(srv.URL, "", 0)
	if err != nil {
		t.Fatalf("create transcriber: %v", err)
	}

	var terr *TranscriptionError
	if _, err := tr.Transcribe(context.Background(), []byte("fake audio")); !errors.As(err, &terr) {
		t.Errorf("expected TranscriptionError, got %v", err)
	}

	if _, err := tr.Transcribe(context.Background(), nil); !errors.As(err, &terr) {
		t.Errorf("expected TranscriptionError for empty clip, got %v", err)
	}
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte{0x01, 0x02, 0x03}); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	s, err := NewHTTPSynthesizer(srv.URL, "", 0)
	if err != nil {
		t.Fatalf("create synthesizer: %v", err)
	}

	audio, err := s.Synthesize(context.Background(), "Hello", "warm")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(audio) != 3 {
		t.Errorf("unexpected audio payload %v", audio)
	}
}

func TestSynthesizeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := NewHTTPSynthesizer(srv.URL, "", 0)
	if err != nil {
		t.Fatalf("create synthesizer: %v", err)
	}

	if _, err := s.Synthesize(context.Background(), "Hello", ""); err == nil {
		t.Error("expected error on upstream failure")
	}
}
