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
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateCreatePool(t *testing.T) {
	tests := []struct {
		name    string
		pool    CreatePool
		wantErr bool
	}{
		{"valid", CreatePool{Size: 71, Label: "August draw"}, false},
		{"zero size", CreatePool{Size: 0}, true},
		{"negative size", CreatePool{Size: -3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pool.ValidateCreatePool()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCreateSale(t *testing.T) {
	index := 0
	negative := -1

	tests := []struct {
		name    string
		sale    CreateSale
		wantErr bool
	}{
		{"valid with slot zero", CreateSale{PoolID: "pol_1", SlotIndex: &index, Amount: decimal.NewFromInt(25)}, false},
		{"missing pool", CreateSale{SlotIndex: &index}, true},
		{"missing slot index", CreateSale{PoolID: "pol_1"}, true},
		{"negative slot index", CreateSale{PoolID: "pol_1", SlotIndex: &negative}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sale.ValidateCreateSale()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestToSale(t *testing.T) {
	index := 7
	req := CreateSale{
		PoolID:       "pol_1",
		SlotIndex:    &index,
		AgentID:      "agent_1",
		CustomerName: "Maria",
		Amount:       decimal.RequireFromString("25.00"),
	}

	sale := req.ToSale()
	assert.Equal(t, "pol_1", sale.PoolID)
	assert.Equal(t, 7, sale.SlotIndex)
	assert.Equal(t, "agent_1", sale.AgentID)
	assert.True(t, sale.Amount.Equal(decimal.RequireFromString("25.00")))
}
