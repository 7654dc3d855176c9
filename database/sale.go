/*
Copyright 2025 Rifa Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/rifalabs/rifa/internal/apierror"
	"github.com/rifalabs/rifa/model"
)

// CreateSale creates a pending sale bound to a slot the agent currently holds
// under a live lease. The slot row is locked for the whole check-then-insert,
// and lease freshness is validated here even if the reaper has not run yet.
// The reaper is cleanup, not the safety mechanism.
func (d Datasource) CreateSale(ctx context.Context, sale *model.Sale, now time.Time) (*model.Sale, error) {
	ctx, span := otel.Tracer("sale.create").Start(ctx, "Creating sale against reservation")
	defer span.End()

	sale.SaleID = model.GenerateUUIDWithSuffix("sal")
	sale.Status = model.SaleStatusPending
	sale.CreatedAt = now

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	slot, err := lockSlot(ctx, tx, sale.PoolID, sale.SlotIndex)
	if err != nil {
		return nil, err
	}

	switch slot.Status {
	case model.SlotStatusSold:
		return nil, apierror.NewAPIError(apierror.ErrAlreadySold, "Slot is already sold", nil)
	case model.SlotStatusAvailable:
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Slot is not reserved", nil)
	}

	if slot.Lease == nil || slot.Lease.AgentID != sale.AgentID {
		return nil, apierror.NewAPIError(apierror.ErrReservedByOther, "Slot is reserved by another agent", nil)
	}
	if slot.Lease.Elapsed(now) {
		return nil, apierror.NewAPIError(apierror.ErrLeaseExpired, "Reservation has expired", nil)
	}
	if slot.SaleID != "" {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Slot already has a sale bound", nil)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rifa.sales (sale_id, pool_id, slot_index, agent_id, customer_id, customer_name, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sale.SaleID, sale.PoolID, sale.SlotIndex, sale.AgentID, sale.CustomerID, sale.CustomerName, sale.Amount, sale.Status, sale.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "Sale with this ID already exists", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create sale", err)
	}

	// The slot stays reserved; the sale binding just rides along under the
	// same lease until confirm or cancel.
	_, err = tx.ExecContext(ctx, `
		UPDATE rifa.slots
		SET sale_id = $3, updated_at = $4
		WHERE pool_id = $1 AND idx = $2
	`, sale.PoolID, sale.SlotIndex, sale.SaleID, now)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to bind sale to slot", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit sale creation", err)
	}

	d.invalidateSlotBoard(ctx, sale.PoolID)
	return sale, nil
}

func (d Datasource) GetSaleByID(ctx context.Context, id string) (*model.Sale, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT sale_id, pool_id, slot_index, agent_id, COALESCE(customer_id, ''), COALESCE(customer_name, ''), amount, status, COALESCE(reason, ''), created_at, confirmed_at, canceled_at
		FROM rifa.sales
		WHERE sale_id = $1
	`, id)

	sale, err := scanSale(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Sale not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve sale", err)
	}
	return sale, nil
}

func (d Datasource) GetAllSales(ctx context.Context, poolID, agentID string, limit, offset int) ([]model.Sale, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT sale_id, pool_id, slot_index, agent_id, COALESCE(customer_id, ''), COALESCE(customer_name, ''), amount, status, COALESCE(reason, ''), created_at, confirmed_at, canceled_at
		FROM rifa.sales
		WHERE ($1 = '' OR pool_id = $1)
		  AND ($2 = '' OR agent_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, poolID, agentID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve sales", err)
	}
	defer rows.Close()

	sales := []model.Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan sale data", err)
		}
		sales = append(sales, *sale)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over sales", err)
	}

	return sales, nil
}

// ConfirmSale moves a pending sale to paid and its slot to sold in one
// transaction. The lease is cleared; the sale binding stays on the sold slot.
func (d Datasource) ConfirmSale(ctx context.Context, saleID string, actor model.Actor, now time.Time) (*model.Sale, error) {
	ctx, span := otel.Tracer("sale.confirm").Start(ctx, "Confirming sale")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	sale, err := lockSale(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}

	if !actor.CanActFor(sale.AgentID) {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "Caller may not confirm this sale", nil)
	}
	if !sale.IsPending() {
		return nil, apierror.NewAPIError(apierror.ErrNotPending, "Sale is not pending", nil)
	}

	slot, err := lockSlot(ctx, tx, sale.PoolID, sale.SlotIndex)
	if err != nil {
		return nil, err
	}

	// A reaped or re-reserved slot no longer references this sale; the sale
	// is an orphan and must be reconciled through cancel, never confirmed.
	if slot.SaleID != sale.SaleID {
		return nil, apierror.NewAPIError(apierror.ErrSlotMismatch, "Slot does not reference this sale", nil)
	}
	if slot.Status != model.SlotStatusReserved {
		return nil, apierror.NewAPIError(apierror.ErrSlotMismatch, "Slot is no longer reserved for this sale", nil)
	}
	if slot.Lease == nil || slot.Lease.AgentID != sale.AgentID {
		return nil, apierror.NewAPIError(apierror.ErrReservedByOther, "Slot is not reserved by the selling agent", nil)
	}
	if slot.Lease.Elapsed(now) {
		return nil, apierror.NewAPIError(apierror.ErrLeaseExpired, "Reservation has expired", nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rifa.sales
		SET status = $2, confirmed_at = $3
		WHERE sale_id = $1
	`, saleID, model.SaleStatusPaid, now)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to confirm sale", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rifa.slots
		SET status = $3, lease_agent = NULL, lease_until = NULL, updated_at = $4
		WHERE pool_id = $1 AND idx = $2
	`, sale.PoolID, sale.SlotIndex, model.SlotStatusSold, now)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark slot sold", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit sale confirmation", err)
	}

	d.invalidateSlotBoard(ctx, sale.PoolID)
	sale.Status = model.SaleStatusPaid
	sale.ConfirmedAt = &now
	return sale, nil
}

// CancelSale cancels a pending sale, or contests a paid one (admins only).
// A pending sale whose slot was already reaped is finalized as canceled
// without touching the slot.
func (d Datasource) CancelSale(ctx context.Context, saleID string, actor model.Actor, reason string, now time.Time) (*model.Sale, error) {
	ctx, span := otel.Tracer("sale.cancel").Start(ctx, "Canceling sale")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	sale, err := lockSale(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}

	switch sale.Status {
	case model.SaleStatusPending:
		if !actor.CanActFor(sale.AgentID) {
			return nil, apierror.NewAPIError(apierror.ErrForbidden, "Caller may not cancel this sale", nil)
		}
	case model.SaleStatusPaid:
		// Contesting a paid sale is the only way a sold slot comes back.
		if !actor.Admin {
			return nil, apierror.NewAPIError(apierror.ErrForbidden, "Only an admin may contest a paid sale", nil)
		}
		if reason == "" {
			reason = model.CancelReasonContest
		}
	default:
		return nil, apierror.NewAPIError(apierror.ErrNotPending, "Sale is already canceled", nil)
	}

	slot, err := lockSlot(ctx, tx, sale.PoolID, sale.SlotIndex)
	if err != nil {
		return nil, err
	}

	releaseSlot := false
	switch sale.Status {
	case model.SaleStatusPending:
		// Release only when the slot still carries this sale's reservation;
		// otherwise the reaper or a release already freed it and this cancel
		// is pure reconciliation of the orphaned sale.
		releaseSlot = slot.Status == model.SlotStatusReserved && slot.SaleID == sale.SaleID
	case model.SaleStatusPaid:
		if slot.Status != model.SlotStatusSold || slot.SaleID != sale.SaleID {
			return nil, apierror.NewAPIError(apierror.ErrSlotMismatch, "Slot is not sold under this sale", nil)
		}
		releaseSlot = true
	}

	if releaseSlot {
		_, err = tx.ExecContext(ctx, `
			UPDATE rifa.slots
			SET status = $3, lease_agent = NULL, lease_until = NULL, sale_id = NULL, canceled_previously = TRUE, updated_at = $4
			WHERE pool_id = $1 AND idx = $2
		`, sale.PoolID, sale.SlotIndex, model.SlotStatusAvailable, now)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release slot", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rifa.sales
		SET status = $2, canceled_at = $3, reason = $4
		WHERE sale_id = $1
	`, saleID, model.SaleStatusCanceled, now, reason)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to cancel sale", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit sale cancellation", err)
	}

	if releaseSlot {
		d.invalidateSlotBoard(ctx, sale.PoolID)
	}
	sale.Status = model.SaleStatusCanceled
	sale.CanceledAt = &now
	sale.Reason = reason
	return sale, nil
}

func (d Datasource) GetAgentStats(ctx context.Context, agentID string) (*model.AgentStats, error) {
	stats := model.AgentStats{AgentID: agentID}
	row := d.Conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'paid'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'canceled'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0)
		FROM rifa.sales
		WHERE agent_id = $1
	`, agentID)

	err := row.Scan(&stats.PaidCount, &stats.PendingCount, &stats.CanceledCount, &stats.PaidTotal)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to aggregate agent sales", err)
	}
	return &stats, nil
}

func lockSale(ctx context.Context, tx *sql.Tx, saleID string) (*model.Sale, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT sale_id, pool_id, slot_index, agent_id, COALESCE(customer_id, ''), COALESCE(customer_name, ''), amount, status, COALESCE(reason, ''), created_at, confirmed_at, canceled_at
		FROM rifa.sales
		WHERE sale_id = $1
		FOR UPDATE
	`, saleID)

	sale, err := scanSale(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Sale not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve sale", err)
	}
	return sale, nil
}

func lockSlot(ctx context.Context, tx *sql.Tx, poolID string, index int) (*model.Slot, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT pool_id, idx, status, lease_agent, lease_until, COALESCE(sale_id, ''), canceled_previously, updated_at
		FROM rifa.slots
		WHERE pool_id = $1 AND idx = $2
		FOR UPDATE
	`, poolID, index)

	slot, err := scanSlot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Slot not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve slot", err)
	}
	return slot, nil
}

func scanSale(row rowScanner) (*model.Sale, error) {
	sale := model.Sale{}
	var confirmedAt, canceledAt sql.NullTime
	err := row.Scan(&sale.SaleID, &sale.PoolID, &sale.SlotIndex, &sale.AgentID, &sale.CustomerID, &sale.CustomerName, &sale.Amount, &sale.Status, &sale.Reason, &sale.CreatedAt, &confirmedAt, &canceledAt)
	if err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		sale.ConfirmedAt = &t
	}
	if canceledAt.Valid {
		t := canceledAt.Time
		sale.CanceledAt = &t
	}
	return &sale, nil
}
