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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/rifalabs/rifa/cache"
	"github.com/rifalabs/rifa/config"
	"github.com/rifalabs/rifa/internal/apierror"
	"github.com/rifalabs/rifa/model"
)

var slotColumns = []string{"pool_id", "idx", "status", "lease_agent", "lease_until", "sale_id", "canceled_previously", "updated_at"}

func expectSlotLock(mock sqlmock.Sqlmock, poolID string, index int, rows *sqlmock.Rows) {
	mock.ExpectQuery("SELECT pool_id, idx, status, lease_agent, lease_until, (.+) FOR UPDATE").
		WithArgs(poolID, index).
		WillReturnRows(rows)
}

func availableSlotRow(poolID string, index int) *sqlmock.Rows {
	return sqlmock.NewRows(slotColumns).
		AddRow(poolID, index, model.SlotStatusAvailable, nil, nil, "", false, time.Now())
}

func reservedSlotRow(poolID string, index int, agentID string, leaseUntil time.Time, saleID string) *sqlmock.Rows {
	return sqlmock.NewRows(slotColumns).
		AddRow(poolID, index, model.SlotStatusReserved, agentID, leaseUntil, saleID, false, time.Now())
}

func TestToggleSlot_ReservesAvailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	leaseUntil := time.Now().Add(15 * time.Minute)

	mock.ExpectBegin()
	expectSlotLock(mock, "pol_1", 4, availableSlotRow("pol_1", 4))
	mock.ExpectQuery("SELECT status FROM rifa.pools").
		WithArgs("pol_1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(model.PoolStatusOpen))
	mock.ExpectExec("UPDATE rifa.slots").
		WithArgs("pol_1", 4, model.SlotStatusReserved, "agent_1", leaseUntil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := ds.ToggleSlot(context.Background(), "pol_1", 4, model.Actor{AgentID: "agent_1"}, leaseUntil)
	assert.NoError(t, err)
	assert.Equal(t, model.SlotStatusReserved, result.Status)
	assert.False(t, result.Unchanged)
	assert.NotNil(t, result.Lease)
	assert.Equal(t, "agent_1", result.Lease.AgentID)
	assert.Equal(t, leaseUntil, result.Lease.LeaseUntil)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleSlot_ReleasesOwnReservation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	expectSlotLock(mock, "pol_1", 4, reservedSlotRow("pol_1", 4, "agent_1", time.Now().Add(10*time.Minute), ""))
	mock.ExpectExec("UPDATE rifa.slots").
		WithArgs("pol_1", 4, model.SlotStatusAvailable, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := ds.ToggleSlot(context.Background(), "pol_1", 4, model.Actor{AgentID: "agent_1"}, time.Now().Add(15*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, model.SlotStatusAvailable, result.Status)
	assert.Nil(t, result.Lease)
}

func TestToggleSlot_ReservedByOther(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	expectSlotLock(mock, "pol_1", 4, reservedSlotRow("pol_1", 4, "agent_2", time.Now().Add(10*time.Minute), ""))
	mock.ExpectRollback()

	_, err = ds.ToggleSlot(context.Background(), "pol_1", 4, model.Actor{AgentID: "agent_1"}, time.Now().Add(15*time.Minute))
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrReservedByOther, apiErr.Code)
}

func TestToggleSlot_AdminReleasesAnyReservation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	expectSlotLock(mock, "pol_1", 4, reservedSlotRow("pol_1", 4, "agent_2", time.Now().Add(10*time.Minute), ""))
	mock.ExpectExec("UPDATE rifa.slots").
		WithArgs("pol_1", 4, model.SlotStatusAvailable, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := ds.ToggleSlot(context.Background(), "pol_1", 4, model.Actor{AgentID: "admin_1", Admin: true}, time.Now().Add(15*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, model.SlotStatusAvailable, result.Status)
}

func TestToggleSlot_SoldIsUnchanged(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows(slotColumns).
		AddRow("pol_1", 4, model.SlotStatusSold, nil, nil, "sal_1", false, time.Now())

	mock.ExpectBegin()
	expectSlotLock(mock, "pol_1", 4, rows)
	mock.ExpectCommit()

	result, err := ds.ToggleSlot(context.Background(), "pol_1", 4, model.Actor{AgentID: "agent_1"}, time.Now().Add(15*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, model.SlotStatusSold, result.Status)
	assert.True(t, result.Unchanged)
}

func TestToggleSlot_ClosedPoolRejectsReserve(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	expectSlotLock(mock, "pol_1", 4, availableSlotRow("pol_1", 4))
	mock.ExpectQuery("SELECT status FROM rifa.pools").
		WithArgs("pol_1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(model.PoolStatusClosed))
	mock.ExpectRollback()

	_, err = ds.ToggleSlot(context.Background(), "pol_1", 4, model.Actor{AgentID: "agent_1"}, time.Now().Add(15*time.Minute))
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrAlreadyClosed, apiErr.Code)
}

func TestToggleSlot_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pool_id, idx, status, lease_agent, lease_until, (.+) FOR UPDATE").
		WithArgs("pol_1", 99).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err = ds.ToggleSlot(context.Background(), "pol_1", 99, model.Actor{AgentID: "agent_1"}, time.Now().Add(15*time.Minute))
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestReserveSlot_OwnReservationIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	leaseUntil := time.Now().Add(10 * time.Minute)

	mock.ExpectBegin()
	expectSlotLock(mock, "pol_1", 4, reservedSlotRow("pol_1", 4, "agent_1", leaseUntil, ""))
	mock.ExpectCommit()

	result, err := ds.ReserveSlot(context.Background(), "pol_1", 4, model.Actor{AgentID: "agent_1"}, time.Now().Add(15*time.Minute))
	assert.NoError(t, err)
	assert.True(t, result.Unchanged)
	assert.Equal(t, model.SlotStatusReserved, result.Status)
	assert.Equal(t, "agent_1", result.Lease.AgentID)
}

func TestReserveSlot_SoldSlot(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows(slotColumns).
		AddRow("pol_1", 4, model.SlotStatusSold, nil, nil, "sal_1", false, time.Now())

	mock.ExpectBegin()
	expectSlotLock(mock, "pol_1", 4, rows)
	mock.ExpectRollback()

	_, err = ds.ReserveSlot(context.Background(), "pol_1", 4, model.Actor{AgentID: "agent_1"}, time.Now().Add(15*time.Minute))
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrAlreadySold, apiErr.Code)
}

func TestReleaseSlot_AvailableIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	expectSlotLock(mock, "pol_1", 4, availableSlotRow("pol_1", 4))
	mock.ExpectCommit()

	result, err := ds.ReleaseSlot(context.Background(), "pol_1", 4, model.Actor{AgentID: "agent_1"})
	assert.NoError(t, err)
	assert.True(t, result.Unchanged)
	assert.Equal(t, model.SlotStatusAvailable, result.Status)
}

func TestExpireSlotLease_Expired(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectExec("UPDATE rifa.slots").
		WithArgs("pol_1", 4, now, model.SlotStatusAvailable, model.SlotStatusReserved).
		WillReturnResult(sqlmock.NewResult(0, 1))

	released, err := ds.ExpireSlotLease(context.Background(), "pol_1", 4, now)
	assert.NoError(t, err)
	assert.True(t, released)
}

func TestExpireSlotLease_StillLive(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectExec("UPDATE rifa.slots").
		WithArgs("pol_1", 4, now, model.SlotStatusAvailable, model.SlotStatusReserved).
		WillReturnResult(sqlmock.NewResult(0, 0))

	released, err := ds.ExpireSlotLease(context.Background(), "pol_1", 4, now)
	assert.NoError(t, err)
	assert.False(t, released)
}

func TestReleaseExpiredSlots_Sweep(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT pool_id, idx FROM rifa.slots").
		WithArgs(model.SlotStatusReserved, now).
		WillReturnRows(sqlmock.NewRows([]string{"pool_id", "idx"}).
			AddRow("pol_1", 4).
			AddRow("pol_2", 9))
	mock.ExpectExec("UPDATE rifa.slots").
		WithArgs("pol_1", 4, now, model.SlotStatusAvailable, model.SlotStatusReserved).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The second slot was re-reserved between scan and release; the guarded
	// update skips it.
	mock.ExpectExec("UPDATE rifa.slots").
		WithArgs("pol_2", 9, now, model.SlotStatusAvailable, model.SlotStatusReserved).
		WillReturnResult(sqlmock.NewResult(0, 0))

	released, err := ds.ReleaseExpiredSlots(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 1, released)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSlots_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows(slotColumns).
		AddRow("pol_1", 0, model.SlotStatusAvailable, nil, nil, "", false, time.Now()).
		AddRow("pol_1", 1, model.SlotStatusReserved, "agent_1", time.Now().Add(5*time.Minute), "", false, time.Now()).
		AddRow("pol_1", 2, model.SlotStatusSold, nil, nil, "sal_1", true, time.Now())

	mock.ExpectQuery("SELECT pool_id, idx, status, lease_agent, lease_until, (.+) ORDER BY idx").
		WithArgs("pol_1").
		WillReturnRows(rows)

	slots, err := ds.GetSlots(context.Background(), "pol_1")
	assert.NoError(t, err)
	assert.Len(t, slots, 3)
	assert.Nil(t, slots[0].Lease)
	assert.NotNil(t, slots[1].Lease)
	assert.Equal(t, "agent_1", slots[1].Lease.AgentID)
	assert.Equal(t, "sal_1", slots[2].SaleID)
	assert.True(t, slots[2].CanceledPreviously)
}

func TestGetSlots_CacheTTLFromConfig(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisServer := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis:       config.RedisConfig{Dns: redisServer.Addr()},
		DataSource:  config.DataSourceConfig{Dns: "postgres://postgres:@localhost:5432/rifa?sslmode=disable"},
		Reservation: config.ReservationConfig{SlotCacheSecs: 90},
	})

	boardCache, err := cache.NewRedisCache([]string{redisServer.Addr()})
	assert.NoError(t, err)

	ds := Datasource{Conn: db, Cache: boardCache}

	rows := sqlmock.NewRows(slotColumns).
		AddRow("pol_cache", 0, model.SlotStatusAvailable, nil, nil, "", false, time.Now())

	mock.ExpectQuery("SELECT pool_id, idx, status, lease_agent, lease_until, (.+) ORDER BY idx").
		WithArgs("pol_cache").
		WillReturnRows(rows)

	slots, err := ds.GetSlots(context.Background(), "pol_cache")
	assert.NoError(t, err)
	assert.Len(t, slots, 1)

	assert.Equal(t, 90*time.Second, redisServer.TTL(cache.SlotBoardKey("pol_cache")))
}

func TestGetSlots_UnknownPool(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT pool_id, idx, status, lease_agent, lease_until, (.+) ORDER BY idx").
		WithArgs("pol_missing").
		WillReturnRows(sqlmock.NewRows(slotColumns))
	mock.ExpectQuery("SELECT pool_id, size, status, owner_agent, created_by, (.+) FROM rifa.pools WHERE pool_id =").
		WithArgs("pol_missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetSlots(context.Background(), "pol_missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}
