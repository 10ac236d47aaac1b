// Package api provides the HTTP handlers for onboarding and routing.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aurasense/companion/internal/dialogue"
	"github.com/aurasense/companion/internal/domain"
	"github.com/aurasense/companion/internal/router"
)

// Handler serves the onboarding lifecycle and steady-state routing endpoints.
type Handler struct {
	controller *dialogue.Controller
	registry   *router.Registry
}

// NewHandler creates a new Handler.
func NewHandler(controller *dialogue.Controller, registry *router.Registry) *Handler {
	return &Handler{controller: controller, registry: registry}
}

// RegisterRoutes mounts the API endpoints on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/onboarding/start", h.StartSession)
	r.Post("/onboarding/turn", h.SubmitTurn)
	r.Post("/onboarding/stop", h.StopSession)
	r.Post("/route", h.RouteTurn)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// lifecycleError maps controller errors onto HTTP statuses: missing session
// is 404, lifecycle conflicts are 409, everything else (storage, schema
// drift) is a 500.
func lifecycleError(w http.ResponseWriter, err error) {
	var (
		creation  *domain.SessionCreationError
		invalid   *domain.InvalidStateError
		violation *domain.SchemaViolationError
	)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.As(err, &creation), errors.As(err, &invalid):
		Error(w, http.StatusConflict, err.Error())
	case errors.As(err, &violation):
		slog.Error("schema violation surfaced to transport", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
	default:
		slog.Error("request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

type startRequest struct {
	UserID string `json:"user_id"`
}

// StartSession handles POST /onboarding/start.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.UserID == "" {
		Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	resp, err := h.controller.Start(r.Context(), req.UserID)
	if err != nil {
		lifecycleError(w, err)
		return
	}
	JSON(w, http.StatusCreated, resp)
}

type turnRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// SubmitTurn handles POST /onboarding/turn.
func (h *Handler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	resp, err := h.controller.Submit(r.Context(), req.SessionID, req.Text)
	if err != nil {
		lifecycleError(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

type stopRequest struct {
	SessionID string `json:"session_id"`
}

// StopSession handles POST /onboarding/stop.
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	handoff, err := h.controller.Stop(r.Context(), req.SessionID)
	if err != nil {
		lifecycleError(w, err)
		return
	}
	JSON(w, http.StatusOK, handoff)
}

type routeRequest struct {
	Text        string             `json:"text"`
	UserContext domain.UserContext `json:"user_context"`
}

type routeResponse struct {
	Decision domain.RoutingDecision `json:"decision"`
	Message  string                 `json:"message"`
}

// RouteTurn handles POST /route: classify a steady-state turn and dispatch
// it to the matching domain handler.
func (h *Handler) RouteTurn(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Text == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	decision, message, err := h.registry.Dispatch(r.Context(), req.Text, req.UserContext)
	if err != nil {
		slog.Error("routing dispatch failed", "domain", decision.Domain, "error", err)
		Error(w, http.StatusBadGateway, "domain handler failed")
		return
	}
	JSON(w, http.StatusOK, routeResponse{Decision: decision, Message: message})
}
