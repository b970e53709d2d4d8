package database

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/finsighthq/finsight/config"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn   *sql.DB
	Driver string
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
		con, errConn := ConnectDB(configuration.DataSource.Driver, configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = con
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// ConnectDB opens the store with the configured driver ("postgres" or
// "sqlite3" for local mode) and bootstraps the schema.
func ConnectDB(driver, dns string) (*Datasource, error) {
	db, err := sql.Open(driver, dns)
	if err != nil {
		return nil, errors.Wrap(err, "opening database connection")
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database connection error: %v", err)
		return nil, errors.Wrap(err, "pinging database")
	}
	datasource := &Datasource{Conn: db, Driver: driver}
	err = datasource.createTables()
	if err != nil {
		return nil, err
	}
	return datasource, nil
}

// serialPK returns the auto-incrementing primary key clause for the active
// driver. Both dialects accept the $N placeholder style used everywhere else.
func (d *Datasource) serialPK() string {
	if d.Driver == "sqlite3" {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "BIGSERIAL PRIMARY KEY"
}

func (d *Datasource) createTables() error {
	for _, create := range []func() error{
		d.createCategoryTable,
		d.createAccountTable,
		d.createTransactionTable,
		d.createRecurringPatternTable,
		d.createSubscriptionTable,
		d.createAnomalyTable,
	} {
		if err := create(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Datasource) createCategoryTable() error {
	_, err := d.Conn.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS categories (
			id %s,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`, d.serialPK()))
	if err != nil {
		log.Printf("Error creating categories table: %v", err)
	}
	return err
}

func (d *Datasource) createAccountTable() error {
	_, err := d.Conn.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS accounts (
			id %s,
			owner_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			opening_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
			current_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`, d.serialPK()))
	if err != nil {
		log.Printf("Error creating accounts table: %v", err)
	}
	return err
}

func (d *Datasource) createTransactionTable() error {
	_, err := d.Conn.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS transactions (
			id %s,
			account_id BIGINT NOT NULL REFERENCES accounts(id),
			txn_date TIMESTAMP NOT NULL,
			description TEXT NOT NULL,
			original_description TEXT NOT NULL DEFAULT '',
			debit_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			credit_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			balance_after DOUBLE PRECISION NOT NULL DEFAULT 0,
			category_id BIGINT NOT NULL DEFAULT 0,
			is_transfer BOOLEAN NOT NULL DEFAULT FALSE,
			linked_transaction_id BIGINT,
			is_recurring BOOLEAN NOT NULL DEFAULT FALSE,
			recurring_pattern_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`, d.serialPK()))
	if err != nil {
		log.Printf("Error creating transactions table: %v", err)
	}
	return err
}

func (d *Datasource) createRecurringPatternTable() error {
	_, err := d.Conn.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS recurring_patterns (
			id %s,
			pattern_id TEXT NOT NULL UNIQUE,
			owner_id BIGINT NOT NULL,
			normalized_description TEXT NOT NULL,
			merchant_name TEXT NOT NULL DEFAULT '',
			typical_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			typical_day BIGINT NOT NULL DEFAULT 1,
			frequency TEXT NOT NULL,
			category_id BIGINT NOT NULL DEFAULT 0,
			last_seen TIMESTAMP NOT NULL,
			is_subscription BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			occurrences BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (owner_id, normalized_description)
		)
	`, d.serialPK()))
	if err != nil {
		log.Printf("Error creating recurring_patterns table: %v", err)
	}
	return err
}

func (d *Datasource) createSubscriptionTable() error {
	_, err := d.Conn.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS subscriptions (
			id %s,
			subscription_id TEXT NOT NULL UNIQUE,
			owner_id BIGINT NOT NULL,
			merchant_pattern TEXT NOT NULL,
			display_name TEXT NOT NULL,
			expected_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			frequency TEXT NOT NULL,
			billing_day BIGINT NOT NULL DEFAULT 1,
			next_charge_date TIMESTAMP,
			last_charge_date TIMESTAMP,
			direction TEXT NOT NULL CHECK (direction IN ('expense', 'income')),
			category_id BIGINT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`, d.serialPK()))
	if err != nil {
		log.Printf("Error creating subscriptions table: %v", err)
	}
	return err
}

func (d *Datasource) createAnomalyTable() error {
	_, err := d.Conn.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS anomalies (
			id %s,
			anomaly_id TEXT NOT NULL UNIQUE,
			transaction_id BIGINT,
			anomaly_type TEXT NOT NULL,
			severity TEXT NOT NULL CHECK (severity IN ('low', 'medium', 'high')),
			description TEXT NOT NULL DEFAULT '',
			dismissed BOOLEAN NOT NULL DEFAULT FALSE,
			confirmed_fraud BOOLEAN NOT NULL DEFAULT FALSE,
			detected_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (transaction_id, anomaly_type)
		)
	`, d.serialPK()))
	if err != nil {
		log.Printf("Error creating anomalies table: %v", err)
	}
	return err
}
