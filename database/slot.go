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

	"go.opentelemetry.io/otel"

	"github.com/rifalabs/rifa/cache"
	"github.com/rifalabs/rifa/config"
	"github.com/rifalabs/rifa/internal/apierror"
	"github.com/rifalabs/rifa/model"
)

// slotBoardTTL is how long a cached slot board stays valid, from the
// reservation configuration. Invalidation on mutation makes staleness a
// read-only concern either way.
func slotBoardTTL() time.Duration {
	conf, err := config.Fetch()
	if err != nil {
		return time.Minute
	}
	return conf.Reservation.SlotCacheTTL()
}

func (d Datasource) GetSlot(ctx context.Context, poolID string, index int) (*model.Slot, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT pool_id, idx, status, lease_agent, lease_until, COALESCE(sale_id, ''), canceled_previously, updated_at
		FROM rifa.slots
		WHERE pool_id = $1 AND idx = $2
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

// GetSlots returns the full slot board of a pool ordered by index. Boards are
// cached briefly; every slot mutation in the pool invalidates the entry.
func (d Datasource) GetSlots(ctx context.Context, poolID string) ([]model.Slot, error) {
	if d.Cache != nil {
		var cached []model.Slot
		if err := d.Cache.Get(ctx, cache.SlotBoardKey(poolID), &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT pool_id, idx, status, lease_agent, lease_until, COALESCE(sale_id, ''), canceled_previously, updated_at
		FROM rifa.slots
		WHERE pool_id = $1
		ORDER BY idx
	`, poolID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve slots", err)
	}
	defer rows.Close()

	slots := []model.Slot{}
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan slot data", err)
		}
		slots = append(slots, *slot)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over slots", err)
	}

	if len(slots) == 0 {
		// Distinguish an unknown pool from an empty board.
		if _, err := d.GetPoolByID(ctx, poolID); err != nil {
			return nil, err
		}
	}

	if d.Cache != nil {
		_ = d.Cache.Set(ctx, cache.SlotBoardKey(poolID), slots, slotBoardTTL())
	}
	return slots, nil
}

// ToggleSlot is the UI-facing reserve/release overload: the same call claims
// an available slot, releases a reservation held by the caller, and is a
// harmless no-op signal on a sold slot. Slot state decides the effect inside
// one row-locked transaction.
func (d Datasource) ToggleSlot(ctx context.Context, poolID string, index int, actor model.Actor, leaseUntil time.Time) (model.SlotToggle, error) {
	ctx, span := otel.Tracer("slot.toggle").Start(ctx, "Toggling slot reservation")
	defer span.End()

	return d.slotTx(ctx, poolID, index, func(ctx context.Context, tx *sql.Tx, slot *model.Slot) (model.SlotToggle, error) {
		switch slot.Status {
		case model.SlotStatusSold:
			return soldSignal(slot), nil
		case model.SlotStatusAvailable:
			if err := poolOpenForReserve(ctx, tx, poolID); err != nil {
				return model.SlotToggle{}, err
			}
			return reserveLocked(ctx, tx, slot, actor, leaseUntil)
		default: // reserved
			return releaseLocked(ctx, tx, slot, actor)
		}
	})
}

// ReserveSlot claims an available slot for the actor. Unlike ToggleSlot it
// never releases: calling it on a slot already reserved by the actor returns
// the live reservation unchanged.
func (d Datasource) ReserveSlot(ctx context.Context, poolID string, index int, actor model.Actor, leaseUntil time.Time) (model.SlotToggle, error) {
	ctx, span := otel.Tracer("slot.reserve").Start(ctx, "Reserving slot")
	defer span.End()

	return d.slotTx(ctx, poolID, index, func(ctx context.Context, tx *sql.Tx, slot *model.Slot) (model.SlotToggle, error) {
		switch slot.Status {
		case model.SlotStatusSold:
			return model.SlotToggle{}, apierror.NewAPIError(apierror.ErrAlreadySold, "Slot is already sold", nil)
		case model.SlotStatusReserved:
			if slot.Lease != nil && slot.Lease.AgentID == actor.AgentID {
				return model.SlotToggle{PoolID: slot.PoolID, Index: slot.Index, Status: slot.Status, Lease: slot.Lease, Unchanged: true}, nil
			}
			return model.SlotToggle{}, apierror.NewAPIError(apierror.ErrReservedByOther, "Slot is reserved by another agent", nil)
		default:
			if err := poolOpenForReserve(ctx, tx, poolID); err != nil {
				return model.SlotToggle{}, err
			}
			return reserveLocked(ctx, tx, slot, actor, leaseUntil)
		}
	})
}

// ReleaseSlot returns a reserved slot to the available state. Only the lease
// holder or an admin may release; a sold slot is reported AlreadySold and an
// already-available slot is a no-op.
func (d Datasource) ReleaseSlot(ctx context.Context, poolID string, index int, actor model.Actor) (model.SlotToggle, error) {
	ctx, span := otel.Tracer("slot.release").Start(ctx, "Releasing slot")
	defer span.End()

	return d.slotTx(ctx, poolID, index, func(ctx context.Context, tx *sql.Tx, slot *model.Slot) (model.SlotToggle, error) {
		switch slot.Status {
		case model.SlotStatusSold:
			return soldSignal(slot), nil
		case model.SlotStatusAvailable:
			return model.SlotToggle{PoolID: slot.PoolID, Index: slot.Index, Status: slot.Status, Unchanged: true}, nil
		default:
			return releaseLocked(ctx, tx, slot, actor)
		}
	})
}

// ExpireSlotLease releases one slot if, and only if, it is still reserved
// with a lease deadline at or before now. Safe to race with any other slot
// transaction; the row lock serializes them and the re-check makes the loser
// a no-op.
func (d Datasource) ExpireSlotLease(ctx context.Context, poolID string, index int, now time.Time) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE rifa.slots
		SET status = $4, lease_agent = NULL, lease_until = NULL, sale_id = NULL, updated_at = $3
		WHERE pool_id = $1 AND idx = $2 AND status = $5 AND lease_until <= $3
	`, poolID, index, now, model.SlotStatusAvailable, model.SlotStatusReserved)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to expire slot lease", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read expiry result", err)
	}
	if n > 0 {
		d.invalidateSlotBoard(ctx, poolID)
	}
	return n > 0, nil
}

// ReleaseExpiredSlots sweeps every reserved slot whose lease has elapsed,
// releasing each in its own single-row statement. The scan is a snapshot; a
// slot re-reserved between scan and release is skipped by the guarded update.
func (d Datasource) ReleaseExpiredSlots(ctx context.Context, now time.Time) (int, error) {
	ctx, span := otel.Tracer("slot.sweep").Start(ctx, "Sweeping expired leases")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT pool_id, idx
		FROM rifa.slots
		WHERE status = $1 AND lease_until <= $2
	`, model.SlotStatusReserved, now)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan expired leases", err)
	}

	type slotKey struct {
		poolID string
		idx    int
	}
	expired := []slotKey{}
	for rows.Next() {
		var key slotKey
		if err := rows.Scan(&key.poolID, &key.idx); err != nil {
			rows.Close()
			return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan expired slot", err)
		}
		expired = append(expired, key)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over expired slots", err)
	}
	rows.Close()

	released := 0
	for _, key := range expired {
		ok, err := d.ExpireSlotLease(ctx, key.poolID, key.idx, now)
		if err != nil {
			return released, err
		}
		if ok {
			released++
		}
	}
	return released, nil
}

// slotTx runs fn against the slot row locked FOR UPDATE and commits. The row
// lock is the per-document atomicity guard; no in-process lock is held.
func (d Datasource) slotTx(ctx context.Context, poolID string, index int, fn func(ctx context.Context, tx *sql.Tx, slot *model.Slot) (model.SlotToggle, error)) (model.SlotToggle, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return model.SlotToggle{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	row := tx.QueryRowContext(ctx, `
		SELECT pool_id, idx, status, lease_agent, lease_until, COALESCE(sale_id, ''), canceled_previously, updated_at
		FROM rifa.slots
		WHERE pool_id = $1 AND idx = $2
		FOR UPDATE
	`, poolID, index)

	slot, err := scanSlot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.SlotToggle{}, apierror.NewAPIError(apierror.ErrNotFound, "Slot not found", err)
		}
		return model.SlotToggle{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve slot", err)
	}

	result, err := fn(ctx, tx, slot)
	if err != nil {
		return model.SlotToggle{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.SlotToggle{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit slot transaction", err)
	}

	if !result.Unchanged {
		d.invalidateSlotBoard(ctx, poolID)
	}
	return result, nil
}

func reserveLocked(ctx context.Context, tx *sql.Tx, slot *model.Slot, actor model.Actor, leaseUntil time.Time) (model.SlotToggle, error) {
	_, err := tx.ExecContext(ctx, `
		UPDATE rifa.slots
		SET status = $3, lease_agent = $4, lease_until = $5, updated_at = $6
		WHERE pool_id = $1 AND idx = $2
	`, slot.PoolID, slot.Index, model.SlotStatusReserved, actor.AgentID, leaseUntil, time.Now())
	if err != nil {
		return model.SlotToggle{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reserve slot", err)
	}

	lease := &model.Lease{AgentID: actor.AgentID, LeaseUntil: leaseUntil}
	return model.SlotToggle{PoolID: slot.PoolID, Index: slot.Index, Status: model.SlotStatusReserved, Lease: lease}, nil
}

func releaseLocked(ctx context.Context, tx *sql.Tx, slot *model.Slot, actor model.Actor) (model.SlotToggle, error) {
	if slot.Lease == nil || (slot.Lease.AgentID != actor.AgentID && !actor.Admin) {
		return model.SlotToggle{}, apierror.NewAPIError(apierror.ErrReservedByOther, "Slot is reserved by another agent", nil)
	}

	// Releasing also unbinds any pending sale; the sale itself stays pending
	// and is reconciled to canceled through the cancel path.
	_, err := tx.ExecContext(ctx, `
		UPDATE rifa.slots
		SET status = $3, lease_agent = NULL, lease_until = NULL, sale_id = NULL, updated_at = $4
		WHERE pool_id = $1 AND idx = $2
	`, slot.PoolID, slot.Index, model.SlotStatusAvailable, time.Now())
	if err != nil {
		return model.SlotToggle{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release slot", err)
	}

	return model.SlotToggle{PoolID: slot.PoolID, Index: slot.Index, Status: model.SlotStatusAvailable}, nil
}

// poolOpenForReserve rejects new reservations in a closed pool. Releases are
// still permitted so agents can clean up after a close.
func poolOpenForReserve(ctx context.Context, tx *sql.Tx, poolID string) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM rifa.pools WHERE pool_id = $1`, poolID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return apierror.NewAPIError(apierror.ErrNotFound, "Pool not found", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check pool status", err)
	}
	if status == model.PoolStatusClosed {
		return apierror.NewAPIError(apierror.ErrAlreadyClosed, "Pool is already closed", nil)
	}
	return nil
}

func soldSignal(slot *model.Slot) model.SlotToggle {
	return model.SlotToggle{PoolID: slot.PoolID, Index: slot.Index, Status: model.SlotStatusSold, Unchanged: true}
}

func (d Datasource) invalidateSlotBoard(ctx context.Context, poolID string) {
	if d.Cache == nil {
		return
	}
	_ = d.Cache.Delete(ctx, cache.SlotBoardKey(poolID))
}

func scanSlot(row rowScanner) (*model.Slot, error) {
	slot := model.Slot{}
	var leaseAgent sql.NullString
	var leaseUntil sql.NullTime
	err := row.Scan(&slot.PoolID, &slot.Index, &slot.Status, &leaseAgent, &leaseUntil, &slot.SaleID, &slot.CanceledPreviously, &slot.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if leaseAgent.Valid {
		slot.Lease = &model.Lease{AgentID: leaseAgent.String}
		if leaseUntil.Valid {
			slot.Lease.LeaseUntil = leaseUntil.Time
		}
	}
	return &slot, nil
}
