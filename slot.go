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

package rifa

import (
	"context"
	"time"

	"github.com/rifalabs/rifa/config"
	"github.com/rifalabs/rifa/internal/notification"
	"github.com/rifalabs/rifa/model"
)

// postReserveActions schedules the expiry backstop for a fresh reservation.
func (l *Rifa) postReserveActions(result model.SlotToggle) {
	if result.Status != model.SlotStatusReserved || result.Unchanged || result.Lease == nil {
		return
	}
	go func() {
		if err := l.queue.queueLeaseExpiry(result.PoolID, result.Index, result.Lease.LeaseUntil); err != nil {
			notification.NotifyError(err)
		}
	}()
}

// ToggleSlot flips a slot between available and reserved for the acting
// agent. The lease deadline is computed here from configuration; the
// datasource decides the actual effect from the slot's current state.
func (l *Rifa) ToggleSlot(ctx context.Context, poolID string, index int, actor model.Actor) (model.SlotToggle, error) {
	conf, err := config.Fetch()
	if err != nil {
		return model.SlotToggle{}, err
	}

	leaseUntil := time.Now().Add(conf.Reservation.LeaseDuration())
	result, err := l.datasource.ToggleSlot(ctx, poolID, index, actor, leaseUntil)
	if err != nil {
		return model.SlotToggle{}, err
	}
	l.postReserveActions(result)
	return result, nil
}

// ReserveSlot explicitly claims a slot. Idempotent for the holder.
func (l *Rifa) ReserveSlot(ctx context.Context, poolID string, index int, actor model.Actor) (model.SlotToggle, error) {
	conf, err := config.Fetch()
	if err != nil {
		return model.SlotToggle{}, err
	}

	leaseUntil := time.Now().Add(conf.Reservation.LeaseDuration())
	result, err := l.datasource.ReserveSlot(ctx, poolID, index, actor, leaseUntil)
	if err != nil {
		return model.SlotToggle{}, err
	}
	l.postReserveActions(result)
	return result, nil
}

// ReleaseSlot explicitly frees a slot reserved by the actor (or by anyone,
// for admins).
func (l *Rifa) ReleaseSlot(ctx context.Context, poolID string, index int, actor model.Actor) (model.SlotToggle, error) {
	return l.datasource.ReleaseSlot(ctx, poolID, index, actor)
}

func (l *Rifa) GetSlot(ctx context.Context, poolID string, index int) (*model.Slot, error) {
	return l.datasource.GetSlot(ctx, poolID, index)
}

func (l *Rifa) GetSlots(ctx context.Context, poolID string) ([]model.Slot, error) {
	return l.datasource.GetSlots(ctx, poolID)
}
