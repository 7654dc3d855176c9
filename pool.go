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
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rifalabs/rifa/config"
	"github.com/rifalabs/rifa/internal/apierror"
	"github.com/rifalabs/rifa/internal/notification"
	"github.com/rifalabs/rifa/model"
)

func (l *Rifa) postPoolActions(_ context.Context, event string, pool *model.Pool) {
	go func() {
		err := SendWebhook(NewWebhook{
			Event:   event,
			Payload: pool,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}

// CreatePool creates a pool of pool.Size slots, all available. The owner
// defaults to the creating agent; only admins may create pools on behalf of
// another agent.
func (l *Rifa) CreatePool(ctx context.Context, pool model.Pool, actor model.Actor) (model.Pool, error) {
	conf, err := config.Fetch()
	if err != nil {
		return model.Pool{}, err
	}

	if pool.Size < 1 || pool.Size > conf.Reservation.MaxPoolSize {
		return model.Pool{}, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("Pool size must be between 1 and %d", conf.Reservation.MaxPoolSize), nil)
	}

	if pool.OwnerAgent == "" {
		pool.OwnerAgent = actor.AgentID
	}
	if !actor.CanActFor(pool.OwnerAgent) {
		return model.Pool{}, apierror.NewAPIError(apierror.ErrForbidden, "Caller may not create a pool for another agent", nil)
	}
	pool.CreatedBy = actor.AgentID

	created, err := l.datasource.CreatePool(ctx, pool)
	if err != nil {
		return model.Pool{}, err
	}
	l.postPoolActions(ctx, EventPoolCreated, &created)
	return created, nil
}

func (l *Rifa) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	return l.datasource.GetPoolByID(ctx, id)
}

func (l *Rifa) GetAllPools(ctx context.Context, limit, offset int) ([]model.Pool, error) {
	return l.datasource.GetAllPools(ctx, limit, offset)
}

// CloseAndDraw finalizes a pool: no further reservations, and a winning slot
// number drawn uniformly among paid sales. Admin only. A pool with no paid
// sales closes without a drawn number.
func (l *Rifa) CloseAndDraw(ctx context.Context, poolID string, actor model.Actor) (*model.Pool, error) {
	if !actor.Admin {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "Only an admin may close a pool", nil)
	}

	pool, err := l.datasource.ClosePoolAndDraw(ctx, poolID, time.Now(), func(paid []int) int {
		return paid[rand.IntN(len(paid))]
	})
	if err != nil {
		return nil, err
	}
	l.postPoolActions(ctx, EventPoolClosed, pool)
	return pool, nil
}
