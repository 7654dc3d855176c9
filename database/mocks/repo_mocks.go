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
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rifalabs/rifa/database"
	"github.com/rifalabs/rifa/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Pool methods

func (m *MockDataSource) CreatePool(ctx context.Context, pool model.Pool) (model.Pool, error) {
	args := m.Called(ctx, pool)
	return args.Get(0).(model.Pool), args.Error(1)
}

func (m *MockDataSource) GetPoolByID(ctx context.Context, id string) (*model.Pool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Pool), args.Error(1)
}

func (m *MockDataSource) GetAllPools(ctx context.Context, limit, offset int) ([]model.Pool, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Pool), args.Error(1)
}

func (m *MockDataSource) ClosePoolAndDraw(ctx context.Context, poolID string, now time.Time, pick database.DrawPick) (*model.Pool, error) {
	args := m.Called(ctx, poolID, now, pick)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Pool), args.Error(1)
}

// Slot methods

func (m *MockDataSource) GetSlot(ctx context.Context, poolID string, index int) (*model.Slot, error) {
	args := m.Called(ctx, poolID, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Slot), args.Error(1)
}

func (m *MockDataSource) GetSlots(ctx context.Context, poolID string) ([]model.Slot, error) {
	args := m.Called(ctx, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Slot), args.Error(1)
}

func (m *MockDataSource) ToggleSlot(ctx context.Context, poolID string, index int, actor model.Actor, leaseUntil time.Time) (model.SlotToggle, error) {
	args := m.Called(ctx, poolID, index, actor, leaseUntil)
	return args.Get(0).(model.SlotToggle), args.Error(1)
}

func (m *MockDataSource) ReserveSlot(ctx context.Context, poolID string, index int, actor model.Actor, leaseUntil time.Time) (model.SlotToggle, error) {
	args := m.Called(ctx, poolID, index, actor, leaseUntil)
	return args.Get(0).(model.SlotToggle), args.Error(1)
}

func (m *MockDataSource) ReleaseSlot(ctx context.Context, poolID string, index int, actor model.Actor) (model.SlotToggle, error) {
	args := m.Called(ctx, poolID, index, actor)
	return args.Get(0).(model.SlotToggle), args.Error(1)
}

func (m *MockDataSource) ExpireSlotLease(ctx context.Context, poolID string, index int, now time.Time) (bool, error) {
	args := m.Called(ctx, poolID, index, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) ReleaseExpiredSlots(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// Sale methods

func (m *MockDataSource) CreateSale(ctx context.Context, sale *model.Sale, now time.Time) (*model.Sale, error) {
	args := m.Called(ctx, sale, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Sale), args.Error(1)
}

func (m *MockDataSource) GetSaleByID(ctx context.Context, id string) (*model.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Sale), args.Error(1)
}

func (m *MockDataSource) GetAllSales(ctx context.Context, poolID, agentID string, limit, offset int) ([]model.Sale, error) {
	args := m.Called(ctx, poolID, agentID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Sale), args.Error(1)
}

func (m *MockDataSource) ConfirmSale(ctx context.Context, saleID string, actor model.Actor, now time.Time) (*model.Sale, error) {
	args := m.Called(ctx, saleID, actor, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Sale), args.Error(1)
}

func (m *MockDataSource) CancelSale(ctx context.Context, saleID string, actor model.Actor, reason string, now time.Time) (*model.Sale, error) {
	args := m.Called(ctx, saleID, actor, reason, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Sale), args.Error(1)
}

func (m *MockDataSource) GetAgentStats(ctx context.Context, agentID string) (*model.AgentStats, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AgentStats), args.Error(1)
}
