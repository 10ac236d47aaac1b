package router

import (
	"context"
	"fmt"

	"github.com/aurasense/companion/internal/domain"
)

// Handler receives a steady-state turn for one capability domain. Handlers
// are opaque collaborators owned by the surrounding system.
type Handler interface {
	Handle(ctx context.Context, text string, userCtx domain.UserContext) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, text string, userCtx domain.UserContext) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, text string, userCtx domain.UserContext) (string, error) {
	return f(ctx, text, userCtx)
}

// Registry maps capability domains to handlers and dispatches routed turns.
type Registry struct {
	router   *Router
	handlers map[domain.CapabilityDomain]Handler
}

// NewRegistry builds an empty registry around a router.
func NewRegistry(r *Router) *Registry {
	return &Registry{
		router:   r,
		handlers: make(map[domain.CapabilityDomain]Handler),
	}
}

// Register binds a handler to a domain, replacing any previous binding.
// Not safe for concurrent use with Dispatch; register everything at startup.
func (g *Registry) Register(d domain.CapabilityDomain, h Handler) {
	g.handlers[d] = h
}

// Route classifies text without dispatching.
func (g *Registry) Route(ctx context.Context, text string, userCtx domain.UserContext) domain.RoutingDecision {
	return g.router.Route(ctx, text, userCtx)
}

// Dispatch routes the turn and invokes the matching handler, falling back to
// the decision's fallback domain when the primary has no handler.
func (g *Registry) Dispatch(ctx context.Context, text string, userCtx domain.UserContext) (domain.RoutingDecision, string, error) {
	decision := g.router.Route(ctx, text, userCtx)

	h, ok := g.handlers[decision.Domain]
	if !ok {
		h, ok = g.handlers[decision.Fallback]
	}
	if !ok {
		return decision, "", fmt.Errorf("no handler registered for domain %s", decision.Domain)
	}

	response, err := h.Handle(ctx, text, userCtx)
	if err != nil {
		return decision, "", fmt.Errorf("handle %s turn: %w", decision.Domain, err)
	}
	return decision, response, nil
}
