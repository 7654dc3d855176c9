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
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rifalabs/rifa/config"
	"github.com/rifalabs/rifa/database"
	redis_db "github.com/rifalabs/rifa/internal/redis-db"
)

// Rifa is the slot allocation service. All state lives in the datasource;
// Rifa adds authorization, lease arithmetic, and the async side effects.
type Rifa struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
}

// NewRifa initializes the service with the provided datasource, wiring the
// Redis client and task queue from configuration.
func NewRifa(db database.IDataSource) (*Rifa, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	return &Rifa{datasource: db, queue: newQueue, redis: redisClient.Client()}, nil
}
