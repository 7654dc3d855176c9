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
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rifalabs/rifa/model"
)

const (
	AgentIDHeader   = "X-Rifa-Agent-Id"
	AgentRoleHeader = "X-Rifa-Agent-Role"

	RoleAdmin = "admin"
	RoleAgent = "agent"

	actorContextKey = "rifa_actor"
)

// AgentIdentityMiddleware resolves the acting agent from the gateway headers.
// Identity is established upstream; this middleware only translates it into
// an Actor and rejects requests that carry none.
func AgentIdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID := c.GetHeader(AgentIDHeader)
		if agentID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing agent identity"})
			return
		}

		role := c.GetHeader(AgentRoleHeader)
		if role == "" {
			role = RoleAgent
		}
		if role != RoleAgent && role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unknown agent role"})
			return
		}

		c.Set(actorContextKey, model.Actor{AgentID: agentID, Admin: role == RoleAdmin})
		c.Next()
	}
}

// CurrentActor returns the Actor resolved by AgentIdentityMiddleware.
func CurrentActor(c *gin.Context) model.Actor {
	value, exists := c.Get(actorContextKey)
	if !exists {
		return model.Actor{}
	}
	actor, ok := value.(model.Actor)
	if !ok {
		return model.Actor{}
	}
	return actor
}
