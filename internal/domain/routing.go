package domain

// CapabilityDomain identifies one downstream handler for steady-state turns.
type CapabilityDomain string

const (
	DomainFood    CapabilityDomain = "food"
	DomainTravel  CapabilityDomain = "travel"
	DomainSocial  CapabilityDomain = "social"
	DomainProfile CapabilityDomain = "profile"
	// DomainGeneral is the fallback when nothing scores above threshold.
	DomainGeneral CapabilityDomain = "general"
)

// RoutingDecision is the per-turn classification result. It is recomputed
// every turn and never persisted.
type RoutingDecision struct {
	Domain    CapabilityDomain `json:"domain"`
	Fallback  CapabilityDomain `json:"fallback"`
	Score     int              `json:"score"`
	Rationale []string         `json:"rationale,omitempty"`
}

// UserContext is the caller-supplied context consulted during routing and
// passed to domain handlers. The surrounding system owns its contents.
type UserContext struct {
	UserID   string  `json:"user_id"`
	Profile  Profile `json:"profile,omitempty"`
	Location string  `json:"location,omitempty"`
}
