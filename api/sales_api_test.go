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

package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rifalabs/rifa/internal/apierror"
	"github.com/rifalabs/rifa/model"
)

func TestCreateSale_API_Success(t *testing.T) {
	router, mockDS := setupRouter(t)

	mockDS.On("CreateSale", mock.Anything, mock.MatchedBy(func(s *model.Sale) bool {
		return s.PoolID == "pol_1" && s.SlotIndex == 4 && s.AgentID == "agent_1"
	}), mock.Anything).Return(&model.Sale{
		SaleID:    "sal_1",
		PoolID:    "pol_1",
		SlotIndex: 4,
		AgentID:   "agent_1",
		Amount:    decimal.RequireFromString("25.00"),
		Status:    model.SaleStatusPending,
		CreatedAt: time.Now(),
	}, nil)

	var response model.Sale
	payload := `{"pool_id": "pol_1", "slot_index": 4, "customer_name": "Maria", "amount": "25.00"}`
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  newBody(payload),
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/sales",
		Header:   agentHeaders("agent_1"),
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "sal_1", response.SaleID)
	assert.Equal(t, model.SaleStatusPending, response.Status)

	mockDS.AssertExpectations(t)
}

func TestCreateSale_API_ForAnotherAgent(t *testing.T) {
	router, _ := setupRouter(t)

	var response map[string]interface{}
	payload := `{"pool_id": "pol_1", "slot_index": 4, "agent_id": "agent_2"}`
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  newBody(payload),
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/sales",
		Header:   agentHeaders("agent_1"),
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestCreateSale_API_MissingSlotIndex(t *testing.T) {
	router, _ := setupRouter(t)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  newBody(`{"pool_id": "pol_1"}`),
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/sales",
		Header:   agentHeaders("agent_1"),
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateSale_API_LeaseExpired(t *testing.T) {
	router, mockDS := setupRouter(t)

	mockDS.On("CreateSale", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apierror.NewAPIError(apierror.ErrLeaseExpired, "Reservation has expired", nil))

	var response map[string]interface{}
	payload := `{"pool_id": "pol_1", "slot_index": 4}`
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  newBody(payload),
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/sales",
		Header:   agentHeaders("agent_1"),
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(apierror.ErrLeaseExpired), response["code"])
}

func TestConfirmSale_API_Success(t *testing.T) {
	router, mockDS := setupRouter(t)

	confirmedAt := time.Now()
	mockDS.On("ConfirmSale", mock.Anything, "sal_1", model.Actor{AgentID: "agent_1"}, mock.Anything).
		Return(&model.Sale{
			SaleID:      "sal_1",
			PoolID:      "pol_1",
			SlotIndex:   4,
			AgentID:     "agent_1",
			Status:      model.SaleStatusPaid,
			ConfirmedAt: &confirmedAt,
		}, nil)

	var response model.Sale
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  nil,
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/sales/sal_1/confirm",
		Header:   agentHeaders("agent_1"),
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, model.SaleStatusPaid, response.Status)

	mockDS.AssertExpectations(t)
}

func TestConfirmSale_API_NotPending(t *testing.T) {
	router, mockDS := setupRouter(t)

	mockDS.On("ConfirmSale", mock.Anything, "sal_1", mock.Anything, mock.Anything).
		Return(nil, apierror.NewAPIError(apierror.ErrNotPending, "Sale is not pending", nil))

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  nil,
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/sales/sal_1/confirm",
		Header:   agentHeaders("agent_1"),
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(apierror.ErrNotPending), response["code"])
}

func TestCancelSale_API_WithReason(t *testing.T) {
	router, mockDS := setupRouter(t)

	canceledAt := time.Now()
	mockDS.On("CancelSale", mock.Anything, "sal_1", model.Actor{AgentID: "agent_1"}, "customer gave up", mock.Anything).
		Return(&model.Sale{
			SaleID:     "sal_1",
			PoolID:     "pol_1",
			SlotIndex:  4,
			AgentID:    "agent_1",
			Status:     model.SaleStatusCanceled,
			Reason:     "customer gave up",
			CanceledAt: &canceledAt,
		}, nil)

	var response model.Sale
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  newBody(`{"reason": "customer gave up"}`),
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/sales/sal_1/cancel",
		Header:   agentHeaders("agent_1"),
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, model.SaleStatusCanceled, response.Status)
	assert.Equal(t, "customer gave up", response.Reason)

	mockDS.AssertExpectations(t)
}

func TestGetAllSales_API_Filters(t *testing.T) {
	router, mockDS := setupRouter(t)

	mockDS.On("GetAllSales", mock.Anything, "pol_1", "agent_1", 20, 0).Return([]model.Sale{
		{SaleID: "sal_1", PoolID: "pol_1", SlotIndex: 4, AgentID: "agent_1", Status: model.SaleStatusPending},
	}, nil)

	var response []model.Sale
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  nil,
		Router:   router,
		Response: &response,
		Method:   http.MethodGet,
		Route:    "/sales?pool_id=pol_1&agent_id=agent_1",
		Header:   agentHeaders("agent_1"),
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, response, 1)

	mockDS.AssertExpectations(t)
}

func TestGetAgentStats_API_Success(t *testing.T) {
	router, mockDS := setupRouter(t)

	mockDS.On("GetAgentStats", mock.Anything, "agent_1").Return(&model.AgentStats{
		AgentID:       "agent_1",
		PaidCount:     3,
		PendingCount:  1,
		CanceledCount: 2,
		PaidTotal:     decimal.RequireFromString("75.00"),
	}, nil)

	var response model.AgentStats
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  nil,
		Router:   router,
		Response: &response,
		Method:   http.MethodGet,
		Route:    "/agents/agent_1/stats",
		Header:   agentHeaders("agent_1"),
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(3), response.PaidCount)

	mockDS.AssertExpectations(t)
}
