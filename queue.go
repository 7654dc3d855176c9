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
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rifalabs/rifa/config"
	redis_db "github.com/rifalabs/rifa/internal/redis-db"
)

// Queue wraps the asynq client used for lease expiry and webhook delivery.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// LeaseExpiryPayload identifies the slot whose lease deadline the task fires
// at.
type LeaseExpiryPayload struct {
	PoolID string `json:"pool_id"`
	Index  int    `json:"index"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(fmt.Sprintf("redis://%s", conf.Redis.Dns))
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// LeaseTaskID builds the deduplication ID for a slot's expiry task. One live
// task per slot; re-reserving a slot after its old task fired enqueues a
// fresh one.
func LeaseTaskID(poolID string, index int) string {
	return fmt.Sprintf("%s:%d", poolID, index)
}

// queueLeaseExpiry schedules a task that releases the slot when its lease
// deadline passes. The task is a backstop for the periodic sweep; both are
// no-ops when the slot already moved on.
func (q *Queue) queueLeaseExpiry(poolID string, index int, leaseUntil time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(LeaseExpiryPayload{PoolID: poolID, Index: index})
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(LeaseTaskID(poolID, index)),
		asynq.Queue(cfg.Queue.LeaseExpiryQueue),
		asynq.ProcessIn(time.Until(leaseUntil)),
	}
	task := asynq.NewTask(cfg.Queue.LeaseExpiryQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		// A task for this slot is already scheduled; the existing deadline
		// stands until it fires.
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued lease expiry: %s", LeaseTaskID(poolID, index))
	return nil
}

// queueSweep schedules the next periodic lease sweep. The task ID is keyed to
// the target interval window, so workers rescheduling concurrently collapse
// into one pending sweep without colliding with the run in flight.
func (q *Queue) queueSweep(delay time.Duration) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	window := time.Now().Add(delay).Truncate(delay).Unix()
	task := asynq.NewTask(cfg.Queue.SweepQueue, nil,
		asynq.TaskID(fmt.Sprintf("lease:sweep:%d", window)),
		asynq.Queue(cfg.Queue.SweepQueue),
		asynq.ProcessIn(delay),
	)
	_, err = q.Client.Enqueue(task)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}
	return nil
}
