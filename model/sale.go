package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SaleStatusPending  = "pending"
	SaleStatusPaid     = "paid"
	SaleStatusCanceled = "canceled"
)

// CancelReasonContest is recorded when an admin contests a paid sale and no
// explicit reason is supplied.
const CancelReasonContest = "admin_contest"

// Sale binds a customer purchase to one slot of one pool. It is created
// pending against a reserved slot and reaches a terminal state on confirm or
// cancel; a paid sale is immutable except for the admin contest path.
type Sale struct {
	ID           int64           `json:"-"`
	SaleID       string          `json:"sale_id"`
	PoolID       string          `json:"pool_id"`
	SlotIndex    int             `json:"slot_index"`
	AgentID      string          `json:"agent_id"`
	CustomerID   string          `json:"customer_id,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ConfirmedAt  *time.Time      `json:"confirmed_at,omitempty"`
	CanceledAt   *time.Time      `json:"canceled_at,omitempty"`
}

func (s *Sale) IsPending() bool {
	return s.Status == SaleStatusPending
}

func (s *Sale) IsPaid() bool {
	return s.Status == SaleStatusPaid
}

func (s *Sale) IsTerminal() bool {
	return s.Status == SaleStatusPaid || s.Status == SaleStatusCanceled
}

// AgentStats aggregates a single agent's sales for reporting.
type AgentStats struct {
	AgentID       string          `json:"agent_id"`
	PaidCount     int64           `json:"paid_count"`
	PendingCount  int64           `json:"pending_count"`
	CanceledCount int64           `json:"canceled_count"`
	PaidTotal     decimal.Decimal `json:"paid_total"`
}
