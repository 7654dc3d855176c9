package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/rifalabs/rifa/cache"
	"github.com/rifalabs/rifa/config"

	_ "github.com/lib/pq"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}

		cacheInstance, errCache := cache.NewCache()
		if errCache != nil {
			log.Printf("Error creating cache: %v", errCache)
			// Continue without cache instead of failing completely.
		}

		instance = &Datasource{Conn: con, Cache: cacheInstance}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, errors.Wrap(err, "opening postgres connection")
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, errors.Wrap(err, "pinging postgres")
	}
	err = createSchema(db)
	if err != nil {
		return nil, err
	}
	err = createPoolTable(db)
	if err != nil {
		return nil, err
	}
	err = createSlotTable(db)
	if err != nil {
		return nil, err
	}
	err = createSaleTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS rifa`)
	if err != nil {
		log.Printf("Error creating rifa schema: %v", err)
	}
	return err
}

// createPoolTable creates a PostgreSQL table for the Pool struct
func createPoolTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rifa.pools (
			id SERIAL PRIMARY KEY,
			pool_id TEXT NOT NULL UNIQUE,
			size INT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			owner_agent TEXT NOT NULL,
			created_by TEXT NOT NULL,
			label TEXT,
			drawn_number INT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			closed_at TIMESTAMP
		)
	`)
	if err != nil {
		log.Printf("Error creating pools table: %v", err)
	}
	return err
}

// createSlotTable creates a PostgreSQL table for the Slot struct.
// The (pool_id, idx) primary key is what makes each slot a single document;
// row-level locks on it are the only concurrency guard in the system.
func createSlotTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rifa.slots (
			pool_id TEXT NOT NULL REFERENCES rifa.pools(pool_id),
			idx INT NOT NULL,
			status TEXT NOT NULL DEFAULT 'available',
			lease_agent TEXT,
			lease_until TIMESTAMP,
			sale_id TEXT,
			canceled_previously BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (pool_id, idx)
		)
	`)
	if err != nil {
		log.Printf("Error creating slots table: %v", err)
	}
	return err
}

// createSaleTable creates a PostgreSQL table for the Sale struct
func createSaleTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rifa.sales (
			id SERIAL PRIMARY KEY,
			sale_id TEXT NOT NULL UNIQUE,
			pool_id TEXT NOT NULL REFERENCES rifa.pools(pool_id),
			slot_index INT NOT NULL,
			agent_id TEXT NOT NULL,
			customer_id TEXT,
			customer_name TEXT,
			amount NUMERIC NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			reason TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			confirmed_at TIMESTAMP,
			canceled_at TIMESTAMP
		)
	`)
	if err != nil {
		log.Printf("Error creating sales table: %v", err)
	}
	return err
}
