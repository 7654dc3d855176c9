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
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rifalabs/rifa/config"
	redlock "github.com/rifalabs/rifa/internal/lock"
	"github.com/rifalabs/rifa/internal/notification"
	"github.com/rifalabs/rifa/model"
)

// SweepExpired releases every reserved slot whose lease deadline has passed.
// A Redis lock keeps concurrent workers from scanning the same interval;
// losing the race is not an error. Each release re-checks the deadline under
// the row lock, so racing with the per-slot expiry tasks is safe either way.
func (l *Rifa) SweepExpired(ctx context.Context) (int, error) {
	locker := redlock.NewLocker(l.redis, "sweep:lock", model.GenerateUUIDWithSuffix("lock"))
	if err := locker.Lock(ctx, time.Minute); err != nil {
		log.Printf("Lease sweep already running elsewhere: %v", err)
		return 0, nil
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			notification.NotifyError(err)
		}
	}()

	released, err := l.datasource.ReleaseExpiredSlots(ctx, time.Now())
	if err != nil {
		return released, err
	}
	if released > 0 {
		log.Printf(" [*] Lease sweep released %d slot(s)", released)
	}
	return released, nil
}

// ExpireLease releases one slot if its lease has elapsed, reporting whether
// anything changed.
func (l *Rifa) ExpireLease(ctx context.Context, poolID string, index int) (bool, error) {
	released, err := l.datasource.ExpireSlotLease(ctx, poolID, index, time.Now())
	if err != nil {
		return false, err
	}
	if released {
		go func() {
			err := SendWebhook(NewWebhook{
				Event:   EventSlotReaped,
				Payload: LeaseExpiryPayload{PoolID: poolID, Index: index},
			})
			if err != nil {
				notification.NotifyError(err)
			}
		}()
	}
	return released, nil
}

// ProcessLeaseExpiry handles a scheduled lease expiry task. The task firing
// proves nothing about the slot; the guarded release decides.
func (l *Rifa) ProcessLeaseExpiry(ctx context.Context, task *asynq.Task) error {
	var payload LeaseExpiryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling task payload: %v", err)
		return err
	}
	_, err := l.ExpireLease(ctx, payload.PoolID, payload.Index)
	return err
}

// ScheduleSweep enqueues the first periodic sweep. Later runs reschedule
// themselves from ProcessSweep.
func (l *Rifa) ScheduleSweep(_ context.Context) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	return l.queue.queueSweep(cfg.Reservation.SweepInterval())
}

// ProcessSweep handles a periodic sweep task and schedules the next run.
func (l *Rifa) ProcessSweep(ctx context.Context, _ *asynq.Task) error {
	if _, err := l.SweepExpired(ctx); err != nil {
		return err
	}
	return l.ScheduleSweep(ctx)
}
