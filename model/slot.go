package model

import "time"

const (
	SlotStatusAvailable = "available"
	SlotStatusReserved  = "reserved"
	SlotStatusSold      = "sold"
)

// Lease is a time-bounded claim on a slot by one agent.
type Lease struct {
	AgentID    string    `json:"agent_id"`
	LeaseUntil time.Time `json:"lease_until"`
}

// Elapsed reports whether the lease has run out at the given instant.
func (l *Lease) Elapsed(now time.Time) bool {
	if l == nil {
		return true
	}
	return LeaseElapsed(l.LeaseUntil, now)
}

// HeldBy reports whether the lease currently protects the slot for agentID.
func (l *Lease) HeldBy(agentID string, now time.Time) bool {
	return l != nil && l.AgentID == agentID && !l.Elapsed(now)
}

// Slot is one sellable number within a pool; the unit of allocation.
// Invariant maintained by the datasource code paths: Lease is non-nil iff
// Status is reserved; SaleID is set while a pending sale is bound to a
// reserved slot and while the slot is sold.
type Slot struct {
	PoolID             string    `json:"pool_id"`
	Index              int       `json:"index"`
	Status             string    `json:"status"`
	Lease              *Lease    `json:"lease,omitempty"`
	SaleID             string    `json:"sale_id,omitempty"`
	CanceledPreviously bool      `json:"canceled_previously"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SlotToggle is the outcome of a reserve/release toggle on a slot. Unchanged
// is set when the slot was already sold and the call was a no-op signal.
type SlotToggle struct {
	PoolID    string `json:"pool_id"`
	Index     int    `json:"index"`
	Status    string `json:"status"`
	Lease     *Lease `json:"lease,omitempty"`
	Unchanged bool   `json:"unchanged,omitempty"`
}
