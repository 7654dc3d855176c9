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

	"github.com/gin-gonic/gin"

	"github.com/rifalabs/rifa/api/middleware"
)

// Sweep releases every expired reservation on demand. Admin only; the same
// sweep also runs on a schedule in the worker process.
func (a Api) Sweep(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	if !actor.Admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only an admin may trigger a sweep"})
		return
	}

	released, err := a.rifa.SweepExpired(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"released": released})
}
