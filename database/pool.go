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

// CreatePool inserts the pool row and every slot row in a single transaction.
// The batch is all-or-nothing: a failure on any slot rolls back the pool, so
// partial pools never exist.
func (d Datasource) CreatePool(ctx context.Context, pool model.Pool) (model.Pool, error) {
	ctx, span := otel.Tracer("pool.create").Start(ctx, "Creating pool with slots")
	defer span.End()

	pool.PoolID = model.GenerateUUIDWithSuffix("pol")
	pool.Status = model.PoolStatusOpen
	pool.CreatedAt = time.Now()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return model.Pool{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rifa.pools (pool_id, size, status, owner_agent, created_by, label, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, pool.PoolID, pool.Size, pool.Status, pool.OwnerAgent, pool.CreatedBy, pool.Label, pool.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return model.Pool{}, apierror.NewAPIError(apierror.ErrConflict, "Pool with this ID already exists", err)
		}
		return model.Pool{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create pool", err)
	}

	// COPY-style bulk insert for the slot rows; pools can be large.
	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema("rifa", "slots", "pool_id", "idx", "status", "updated_at"))
	if err != nil {
		return model.Pool{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to prepare slot batch", err)
	}
	for i := 0; i < pool.Size; i++ {
		if _, err := stmt.ExecContext(ctx, pool.PoolID, i, model.SlotStatusAvailable, pool.CreatedAt); err != nil {
			_ = stmt.Close()
			return model.Pool{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to batch slot", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return model.Pool{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to flush slot batch", err)
	}
	if err := stmt.Close(); err != nil {
		return model.Pool{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to close slot batch", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Pool{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit pool creation", err)
	}

	return pool, nil
}

func (d Datasource) GetPoolByID(ctx context.Context, id string) (*model.Pool, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT pool_id, size, status, owner_agent, created_by, COALESCE(label, ''), drawn_number, created_at, closed_at
		FROM rifa.pools
		WHERE pool_id = $1
	`, id)

	pool, err := scanPool(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Pool not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pool", err)
	}
	return pool, nil
}

func (d Datasource) GetAllPools(ctx context.Context, limit, offset int) ([]model.Pool, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT pool_id, size, status, owner_agent, created_by, COALESCE(label, ''), drawn_number, created_at, closed_at
		FROM rifa.pools
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pools", err)
	}
	defer rows.Close()

	pools := []model.Pool{}
	for rows.Next() {
		pool := model.Pool{}
		var drawn sql.NullInt64
		var closedAt sql.NullTime
		err = rows.Scan(&pool.PoolID, &pool.Size, &pool.Status, &pool.OwnerAgent, &pool.CreatedBy, &pool.Label, &drawn, &pool.CreatedAt, &closedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan pool data", err)
		}
		if drawn.Valid {
			n := int(drawn.Int64)
			pool.DrawnNumber = &n
		}
		if closedAt.Valid {
			t := closedAt.Time
			pool.ClosedAt = &t
		}
		pools = append(pools, pool)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over pools", err)
	}

	return pools, nil
}

// ClosePoolAndDraw closes the pool and persists the drawn number in one
// transaction. The pool row is locked for the duration, so concurrent closes
// serialize and the loser sees AlreadyClosed. Slots and sales are read, never
// mutated.
func (d Datasource) ClosePoolAndDraw(ctx context.Context, poolID string, now time.Time, pick DrawPick) (*model.Pool, error) {
	ctx, span := otel.Tracer("pool.close").Start(ctx, "Closing pool and drawing winner")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	row := tx.QueryRowContext(ctx, `
		SELECT pool_id, size, status, owner_agent, created_by, COALESCE(label, ''), drawn_number, created_at, closed_at
		FROM rifa.pools
		WHERE pool_id = $1
		FOR UPDATE
	`, poolID)

	pool, err := scanPool(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Pool not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pool", err)
	}

	if pool.IsClosed() {
		return nil, apierror.NewAPIError(apierror.ErrAlreadyClosed, "Pool is already closed", nil)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT slot_index
		FROM rifa.sales
		WHERE pool_id = $1 AND status = $2
		ORDER BY slot_index
	`, poolID, model.SaleStatusPaid)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to collect paid sales", err)
	}

	paid := []int{}
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			rows.Close()
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan paid sale", err)
		}
		paid = append(paid, idx)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over paid sales", err)
	}
	rows.Close()

	var drawn sql.NullInt64
	if len(paid) > 0 {
		n := pick(paid)
		drawn = sql.NullInt64{Int64: int64(n), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rifa.pools
		SET status = $2, drawn_number = $3, closed_at = $4
		WHERE pool_id = $1
	`, poolID, model.PoolStatusClosed, drawn, now)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to close pool", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit pool close", err)
	}

	pool.Status = model.PoolStatusClosed
	pool.ClosedAt = &now
	if drawn.Valid {
		n := int(drawn.Int64)
		pool.DrawnNumber = &n
	}
	return pool, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPool(row rowScanner) (*model.Pool, error) {
	pool := model.Pool{}
	var drawn sql.NullInt64
	var closedAt sql.NullTime
	err := row.Scan(&pool.PoolID, &pool.Size, &pool.Status, &pool.OwnerAgent, &pool.CreatedBy, &pool.Label, &drawn, &pool.CreatedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	if drawn.Valid {
		n := int(drawn.Int64)
		pool.DrawnNumber = &n
	}
	if closedAt.Valid {
		t := closedAt.Time
		pool.ClosedAt = &t
	}
	return &pool, nil
}
