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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"

	// DefaultLeaseMinutes is how long a reservation protects a slot before
	// the reaper may release it.
	DefaultLeaseMinutes = 15
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"RIFA_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"RIFA_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"RIFA_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"RIFA_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"RIFA_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"RIFA_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"RIFA_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"RIFA_REDIS_DNS"`
}

// ReservationConfig controls slot lease behavior.
type ReservationConfig struct {
	LeaseMinutes  int `json:"lease_minutes" envconfig:"RIFA_RESERVATION_LEASE_MINUTES"`
	SweepMinutes  int `json:"sweep_minutes" envconfig:"RIFA_RESERVATION_SWEEP_MINUTES"`
	MaxPoolSize   int `json:"max_pool_size" envconfig:"RIFA_RESERVATION_MAX_POOL_SIZE"`
	SlotCacheSecs int `json:"slot_cache_secs" envconfig:"RIFA_RESERVATION_SLOT_CACHE_SECS"`
}

func (r ReservationConfig) LeaseDuration() time.Duration {
	return time.Duration(r.LeaseMinutes) * time.Minute
}

func (r ReservationConfig) SweepInterval() time.Duration {
	return time.Duration(r.SweepMinutes) * time.Minute
}

func (r ReservationConfig) SlotCacheTTL() time.Duration {
	return time.Duration(r.SlotCacheSecs) * time.Second
}

type QueueConfig struct {
	WebhookQueue     string `json:"webhook_queue" envconfig:"RIFA_QUEUE_WEBHOOK"`
	LeaseExpiryQueue string `json:"lease_expiry_queue" envconfig:"RIFA_QUEUE_LEASE_EXPIRY"`
	SweepQueue       string `json:"sweep_queue" envconfig:"RIFA_QUEUE_SWEEP"`
	MonitoringPort   string `json:"monitoring_port" envconfig:"RIFA_QUEUE_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"RIFA_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"RIFA_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"RIFA_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type Notification struct {
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string            `json:"project_name" envconfig:"RIFA_PROJECT_NAME"`
	Server       ServerConfig      `json:"server"`
	DataSource   DataSourceConfig  `json:"data_source"`
	Redis        RedisConfig       `json:"redis"`
	Reservation  ReservationConfig `json:"reservation"`
	Queue        QueueConfig       `json:"queue"`
	Notification Notification      `json:"notification"`
	RateLimit    RateLimitConfig   `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("rifa", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called rifa.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Rifa Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Reservation.LeaseMinutes <= 0 {
		cnf.Reservation.LeaseMinutes = DefaultLeaseMinutes
	}
	if cnf.Reservation.SweepMinutes <= 0 {
		cnf.Reservation.SweepMinutes = 5
	}
	if cnf.Reservation.MaxPoolSize <= 0 {
		cnf.Reservation.MaxPoolSize = 100000
	}
	if cnf.Reservation.SlotCacheSecs <= 0 {
		cnf.Reservation.SlotCacheSecs = 60
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.LeaseExpiryQueue == "" {
		cnf.Queue.LeaseExpiryQueue = "lease:expiry"
	}
	if cnf.Queue.SweepQueue == "" {
		cnf.Queue.SweepQueue = "lease:sweep"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5001"
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	_ = mockConfig.validateAndAddDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
