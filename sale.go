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

	"github.com/rifalabs/rifa/internal/apierror"
	"github.com/rifalabs/rifa/internal/notification"
	"github.com/rifalabs/rifa/model"
)

func (l *Rifa) postSaleActions(_ context.Context, event string, sale *model.Sale) {
	go func() {
		err := SendWebhook(NewWebhook{
			Event:   event,
			Payload: sale,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}

// CreateSale records a pending sale against a slot the agent holds under a
// live lease. Admins may record sales on behalf of another agent; regular
// agents only for themselves.
func (l *Rifa) CreateSale(ctx context.Context, sale *model.Sale, actor model.Actor) (*model.Sale, error) {
	if sale.AgentID == "" {
		sale.AgentID = actor.AgentID
	}
	if !actor.CanActFor(sale.AgentID) {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "Caller may not record a sale for another agent", nil)
	}
	if sale.Amount.IsNegative() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Sale amount cannot be negative", nil)
	}

	created, err := l.datasource.CreateSale(ctx, sale, time.Now())
	if err != nil {
		return nil, err
	}
	l.postSaleActions(ctx, EventSaleCreated, created)
	return created, nil
}

// ConfirmSale moves a pending sale to paid; the slot becomes sold and leaves
// the lease lifecycle for good.
func (l *Rifa) ConfirmSale(ctx context.Context, saleID string, actor model.Actor) (*model.Sale, error) {
	sale, err := l.datasource.ConfirmSale(ctx, saleID, actor, time.Now())
	if err != nil {
		return nil, err
	}
	l.postSaleActions(ctx, EventSaleConfirmed, sale)
	return sale, nil
}

// CancelSale cancels a pending sale, freeing its slot when the slot still
// carries the reservation. For paid sales only admins may cancel; that is
// the contest path and it returns the sold slot to the pool.
func (l *Rifa) CancelSale(ctx context.Context, saleID string, actor model.Actor, reason string) (*model.Sale, error) {
	sale, err := l.datasource.CancelSale(ctx, saleID, actor, reason, time.Now())
	if err != nil {
		return nil, err
	}
	l.postSaleActions(ctx, EventSaleCanceled, sale)
	return sale, nil
}

func (l *Rifa) GetSale(ctx context.Context, id string) (*model.Sale, error) {
	return l.datasource.GetSaleByID(ctx, id)
}

func (l *Rifa) GetAllSales(ctx context.Context, poolID, agentID string, limit, offset int) ([]model.Sale, error) {
	return l.datasource.GetAllSales(ctx, poolID, agentID, limit, offset)
}

func (l *Rifa) GetAgentStats(ctx context.Context, agentID string) (*model.AgentStats, error) {
	return l.datasource.GetAgentStats(ctx, agentID)
}
