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
package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/rifalabs/rifa/model"
)

// CreatePool is the request body for POST /pools.
type CreatePool struct {
	Size       int    `json:"size"`
	OwnerAgent string `json:"owner_agent"`
	Label      string `json:"label"`
}

func (p *CreatePool) ValidateCreatePool() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Size, validation.Required, validation.Min(1)),
	)
}

func (p *CreatePool) ToPool() model.Pool {
	return model.Pool{
		Size:       p.Size,
		OwnerAgent: p.OwnerAgent,
		Label:      p.Label,
	}
}

// CreateSale is the request body for POST /sales. SlotIndex is a pointer so
// that slot 0, a valid index, survives the required check.
type CreateSale struct {
	PoolID       string          `json:"pool_id"`
	SlotIndex    *int            `json:"slot_index"`
	AgentID      string          `json:"agent_id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Amount       decimal.Decimal `json:"amount"`
}

func (s *CreateSale) ValidateCreateSale() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.PoolID, validation.Required),
		validation.Field(&s.SlotIndex, validation.NotNil, validation.Min(0)),
	)
}

func (s *CreateSale) ToSale() *model.Sale {
	index := 0
	if s.SlotIndex != nil {
		index = *s.SlotIndex
	}
	return &model.Sale{
		PoolID:       s.PoolID,
		SlotIndex:    index,
		AgentID:      s.AgentID,
		CustomerID:   s.CustomerID,
		CustomerName: s.CustomerName,
		Amount:       s.Amount,
	}
}

// CancelSale is the request body for POST /sales/:id/cancel. The reason is
// optional; admin contests of paid sales get a default reason downstream.
type CancelSale struct {
	Reason string `json:"reason"`
}
