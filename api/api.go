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
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rifalabs/rifa"
	"github.com/rifalabs/rifa/api/middleware"
	"github.com/rifalabs/rifa/config"
	"github.com/rifalabs/rifa/internal/apierror"
)

type Api struct {
	rifa   *rifa.Rifa
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/pools", a.CreatePool)
	router.GET("/pools", a.GetAllPools)
	router.GET("/pools/:id", a.GetPool)
	router.POST("/pools/:id/close", a.ClosePool)

	router.GET("/pools/:id/slots", a.GetSlots)
	router.GET("/pools/:id/slots/:index", a.GetSlot)
	router.POST("/pools/:id/slots/:index", a.ToggleSlot)
	router.POST("/pools/:id/slots/:index/reserve", a.ReserveSlot)
	router.POST("/pools/:id/slots/:index/release", a.ReleaseSlot)

	router.POST("/sales", a.CreateSale)
	router.GET("/sales", a.GetAllSales)
	router.GET("/sales/:id", a.GetSale)
	router.POST("/sales/:id/confirm", a.ConfirmSale)
	router.POST("/sales/:id/cancel", a.CancelSale)

	router.GET("/agents/:id/stats", a.GetAgentStats)

	router.POST("/maintenance/sweep", a.Sweep)

	return a.router
}

func NewAPI(r *rifa.Rifa) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		log.Fatalf("Error fetching config: %v", err)
	}
	router := gin.Default()
	if conf.Server.Secure {
		router.Use(middleware.SecretKeyAuthMiddleware())
	}
	router.Use(middleware.RateLimitMiddleware(conf))

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	router.Use(middleware.AgentIdentityMiddleware())

	return &Api{rifa: r, router: router}
}

// handleError renders a service error with its mapped HTTP status. Guard
// violations come out as 409 so clients can distinguish races from bad
// requests.
func handleError(c *gin.Context, err error) {
	if apiErr, ok := err.(apierror.APIError); ok {
		c.JSON(apierror.MapErrorToHTTPStatus(apiErr), gin.H{"error": apiErr.Message, "code": apiErr.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
