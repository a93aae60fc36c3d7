package store

import (
	"time"

	"github.com/ghalamif/ModFlow/internal/domain"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultTable is the record table of the reference deployment.
const DefaultTable = "register_data"

// Config selects the backing database and the record table.
type Config struct {
	Driver string `yaml:"driver"`
	// DSN is a file path (or ":memory:") for sqlite and a libpq connection
	// string for postgres.
	DSN         string        `yaml:"dsn"`
	Table       string        `yaml:"table"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	MaxOpen     int           `yaml:"max_open_conns"`
}

func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Driver == "sqlite3" {
		c.Driver = DriverSQLite
	}
	if c.DSN == "" && c.Driver == DriverSQLite {
		c.DSN = "modflow.db"
	}
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.MaxOpen <= 0 {
		c.MaxOpen = 4
	}
}

func (c *Config) Validate() error {
	if _, ok := dialects[c.Driver]; !ok {
		return domain.Configf("store.driver", "unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return domain.Configf("store.dsn", "dsn is required")
	}
	if !domain.ValidIdentifier(c.Table) {
		return domain.Configf("store.table", "%q is not a valid table name", c.Table)
	}
	return nil
}
