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
	"time"

	"github.com/rifalabs/rifa/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	pool // Interface for pool-related operations
	slot // Interface for slot allocation operations
	sale // Interface for sale-related operations
}

// pool defines methods for handling pools.
type pool interface {
	CreatePool(ctx context.Context, pool model.Pool) (model.Pool, error)                                   // Creates a pool and all of its slots atomically
	GetPoolByID(ctx context.Context, id string) (*model.Pool, error)                                       // Retrieves a pool by ID
	GetAllPools(ctx context.Context, limit, offset int) ([]model.Pool, error)                              // Retrieves pools, newest first
	ClosePoolAndDraw(ctx context.Context, poolID string, now time.Time, pick DrawPick) (*model.Pool, error) // Closes a pool and persists the drawn number
}

// DrawPick selects one element of paid (never empty when called). Injected so
// the datasource owns the transaction while the caller owns the randomness.
type DrawPick func(paid []int) int

// slot defines methods for the lease engine. Every mutation here reads and
// writes exactly one slot row inside one transaction.
type slot interface {
	GetSlot(ctx context.Context, poolID string, index int) (*model.Slot, error)                                           // Retrieves one slot
	GetSlots(ctx context.Context, poolID string) ([]model.Slot, error)                                                    // Retrieves the full slot board of a pool, ordered by index
	ToggleSlot(ctx context.Context, poolID string, index int, actor model.Actor, leaseUntil time.Time) (model.SlotToggle, error) // Reserve/release dispatch on current slot state
	ReserveSlot(ctx context.Context, poolID string, index int, actor model.Actor, leaseUntil time.Time) (model.SlotToggle, error) // Reserves an available slot
	ReleaseSlot(ctx context.Context, poolID string, index int, actor model.Actor) (model.SlotToggle, error)                // Releases a slot reserved by the actor (or any slot, for admins)
	ExpireSlotLease(ctx context.Context, poolID string, index int, now time.Time) (bool, error)                            // Releases one slot iff still reserved with an elapsed lease
	ReleaseExpiredSlots(ctx context.Context, now time.Time) (int, error)                                                   // Sweeps all elapsed leases across all pools
}

// sale defines methods for handling sales.
type sale interface {
	CreateSale(ctx context.Context, sale *model.Sale, now time.Time) (*model.Sale, error)                       // Creates a pending sale against a live reservation
	GetSaleByID(ctx context.Context, id string) (*model.Sale, error)                                            // Retrieves a sale by ID
	GetAllSales(ctx context.Context, poolID, agentID string, limit, offset int) ([]model.Sale, error)            // Retrieves sales with optional pool/agent filters
	ConfirmSale(ctx context.Context, saleID string, actor model.Actor, now time.Time) (*model.Sale, error)       // pending -> paid, slot -> sold
	CancelSale(ctx context.Context, saleID string, actor model.Actor, reason string, now time.Time) (*model.Sale, error) // pending -> canceled, or admin contest of a paid sale
	GetAgentStats(ctx context.Context, agentID string) (*model.AgentStats, error)                                // Aggregates one agent's sales
}
