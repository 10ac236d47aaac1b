package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// HTTPTranscriber calls a speech-to-text service. The audio clip is posted
// raw; the service answers with the recognized text.
type HTTPTranscriber struct {
	url     string
	apiKey  string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPTranscriber creates a transcriber backed by the STT service at url.
func NewHTTPTranscriber(url, apiKey string, timeout time.Duration) (*HTTPTranscriber, error) {
	if url == "" {
		return nil, fmt.Errorf("STT service URL is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPTranscriber{
		url:     url,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}, nil
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe converts the audio clip to text. Failures surface as a typed
// TranscriptionError so the channel can tell the user to repeat themselves.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", &TranscriptionError{Reason: "empty audio clip"}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(audio))
	if err != nil {
		return "", &TranscriptionError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &TranscriptionError{Reason: "call speech service", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &TranscriptionError{Reason: fmt.Sprintf("speech service returned %d: %s", resp.StatusCode, body)}
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &TranscriptionError{Reason: "decode response", Err: err}
	}
	return out.Text, nil
}

// HTTPSynthesizer calls a text-to-speech service and returns rendered audio.
type HTTPSynthesizer struct {
	url     string
	apiKey  string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPSynthesizer creates a synthesizer backed by the TTS service at url.
func NewHTTPSynthesizer(url, apiKey string, timeout time.Duration) (*HTTPSynthesizer, error) {
	if url == "" {
		return nil, fmt.Errorf("TTS service URL is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPSynthesizer{
		url:     url,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}, nil
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

// Synthesize renders text as audio bytes in the given voice style.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, style string) ([]byte, error) {
	payload, err := json.Marshal(synthesizeRequest{Text: text, Style: style})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call synthesis service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesis service returned %d: %s", resp.StatusCode, body)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	return audio, nil
}

// Compile-time interface checks.
var (
	_ Transcriber = (*HTTPTranscriber)(nil)
	_ Synthesizer = (*HTTPSynthesizer)(nil)
)
