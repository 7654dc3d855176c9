package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// Actor is the pre-resolved caller identity handed down from the boundary
// layer. Authentication and role resolution happen upstream; the core only
// consumes the result.
type Actor struct {
	AgentID string `json:"agent_id"`
	Admin   bool   `json:"admin"`
}

// CanActFor reports whether the actor may operate on resources owned by the
// given agent. Admins act for anyone.
func (a Actor) CanActFor(agentID string) bool {
	return a.Admin || a.AgentID == agentID
}

// LeaseElapsed reports whether a lease deadline has passed at the given
// instant. A zero deadline counts as elapsed, so a slot with no lease is
// never treated as protected.
func LeaseElapsed(leaseUntil time.Time, now time.Time) bool {
	return leaseUntil.IsZero() || !leaseUntil.After(now)
}
