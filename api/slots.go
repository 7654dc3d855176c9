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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rifalabs/rifa/api/middleware"
)

// slotParams extracts the pool ID and slot index from the route.
func slotParams(c *gin.Context) (string, int, bool) {
	poolID, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pool id is required. pass id in the route /:id"})
		return "", 0, false
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot index must be a non-negative integer"})
		return "", 0, false
	}
	return poolID, index, true
}

func (a Api) GetSlots(c *gin.Context) {
	poolID, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pool id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.rifa.GetSlots(c.Request.Context(), poolID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetSlot(c *gin.Context) {
	poolID, index, ok := slotParams(c)
	if !ok {
		return
	}

	resp, err := a.rifa.GetSlot(c.Request.Context(), poolID, index)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) ToggleSlot(c *gin.Context) {
	poolID, index, ok := slotParams(c)
	if !ok {
		return
	}

	resp, err := a.rifa.ToggleSlot(c.Request.Context(), poolID, index, middleware.CurrentActor(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) ReserveSlot(c *gin.Context) {
	poolID, index, ok := slotParams(c)
	if !ok {
		return
	}

	resp, err := a.rifa.ReserveSlot(c.Request.Context(), poolID, index, middleware.CurrentActor(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) ReleaseSlot(c *gin.Context) {
	poolID, index, ok := slotParams(c)
	if !ok {
		return
	}

	resp, err := a.rifa.ReleaseSlot(c.Request.Context(), poolID, index, middleware.CurrentActor(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
