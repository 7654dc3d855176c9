package model

import "time"

const (
	PoolStatusOpen   = "open"
	PoolStatusClosed = "closed"
)

// Pool is a fixed-size set of numbered slots sold as one unit. It is created
// once, mutated only when it is closed and drawn, and never deleted.
type Pool struct {
	ID          int64      `json:"-"`
	PoolID      string     `json:"pool_id"`
	Size        int        `json:"size"`
	Status      string     `json:"status"`
	OwnerAgent  string     `json:"owner_agent"`
	CreatedBy   string     `json:"created_by"`
	Label       string     `json:"label,omitempty"`
	DrawnNumber *int       `json:"drawn_number"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

func (p *Pool) IsClosed() bool {
	return p.Status == PoolStatusClosed
}

// ValidIndex reports whether idx addresses a slot of this pool.
func (p *Pool) ValidIndex(idx int) bool {
	return idx >= 0 && idx < p.Size
}
