package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aurasense/companion/internal/schema"
)

// HTTPExtractor calls an NLU service over HTTP/JSON. The request carries the
// utterance plus the declared field shapes so the service only ever returns
// declared field names; anything else is treated as adapter/schema drift by
// the accumulator.
type HTTPExtractor struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// HTTPExtractorConfig holds configuration for the NLU client.
type HTTPExtractorConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// DefaultHTTPExtractorConfig returns default configuration.
func DefaultHTTPExtractorConfig() HTTPExtractorConfig {
	return HTTPExtractorConfig{
		Timeout: 10 * time.Second,
	}
}

// NewHTTPExtractor creates an extractor backed by the NLU service at cfg.URL.
func NewHTTPExtractor(cfg HTTPExtractorConfig, logger *slog.Logger) (*HTTPExtractor, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("NLU service URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPExtractorConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPExtractor{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}, nil
}

type extractRequest struct {
	Text   string         `json:"text"`
	Fields []fieldSchema  `json:"fields"`
}

type fieldSchema struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Min    int      `json:"min,omitempty"`
	Max    int      `json:"max,omitempty"`
	Values []string `json:"values,omitempty"`
}

type extractResponse struct {
	Fields map[string]any `json:"fields"`
}

// Extract mines candidate field values from text. Empty or whitespace-only
// text yields an empty result without an upstream call. Any transport,
// timeout or decode failure yields an empty result with Degraded set; the
// caller re-prompts instead of failing the turn.
func (e *HTTPExtractor) Extract(ctx context.Context, text string, fields []schema.Field) Result {
	if blankText(text) {
		return Result{}
	}

	reqBody := extractRequest{Text: text}
	for _, f := range fields {
		reqBody.Fields = append(reqBody.Fields, fieldSchema{
			Name:   f.Name,
			Kind:   string(f.Kind),
			Min:    f.Min,
			Max:    f.Max,
			Values: f.Values,
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		e.logger.Warn("failed to marshal extraction request", "error", err)
		return Result{Degraded: true}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		e.logger.Warn("failed to build extraction request", "error", err)
		return Result{Degraded: true}
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("extraction call failed", "error", err)
		return Result{Degraded: true}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			e.logger.Debug("failed to close extraction response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.logger.Warn("extraction service returned non-200",
			"status", resp.StatusCode,
			"body", string(body))
		return Result{Degraded: true}
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		e.logger.Warn("failed to decode extraction response", "error", err)
		return Result{Degraded: true}
	}

	return Result{Fields: out.Fields}
}
