package modflow

import (
	"os"

	"github.com/ghalamif/ModFlow/internal/adapters/influx"
	"github.com/ghalamif/ModFlow/internal/adapters/modbus"
	"github.com/ghalamif/ModFlow/internal/adapters/mqtt"
	"github.com/ghalamif/ModFlow/internal/adapters/observability"
	"github.com/ghalamif/ModFlow/internal/adapters/simulator"
	"github.com/ghalamif/ModFlow/internal/adapters/store"
	"github.com/ghalamif/ModFlow/internal/app/config"
	"github.com/ghalamif/ModFlow/internal/app/trigger"
	"github.com/ghalamif/ModFlow/internal/domain"
	"github.com/ghalamif/ModFlow/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy paces the poll loop.
	Policy = ports.Policy
	// ModbusConfig holds the controller endpoint and register block.
	ModbusConfig = modbus.Config
	// StoreConfig selects the record database.
	StoreConfig = store.Config
	// TriggerConfig selects the trigger positions and match mode.
	TriggerConfig = trigger.Config
	// Layout maps reading positions to record columns.
	Layout = domain.Layout
	// FieldSpec binds one position to one column.
	FieldSpec = domain.FieldSpec
	// MetricsConfig configures the ops HTTP server.
	MetricsConfig = config.MetricsConfig
	// LoggingConfig configures logrus.
	LoggingConfig = observability.LoggingConfig
	// MQTTConfig configures the optional record publisher.
	MQTTConfig = mqtt.Config
	// InfluxConfig configures the optional telemetry mirror.
	InfluxConfig = influx.Config
	// SimulatorConfig configures the bench controller.
	SimulatorConfig = simulator.Config
)

// Store drivers.
const (
	DriverSQLite   = store.DriverSQLite
	DriverPostgres = store.DriverPostgres
)

// LoadConfig loads YAML from disk, then .env and MODFLOW_* overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig reads YAML bytes, honoring MODFLOW_* overrides from the process
// environment.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw, os.LookupEnv)
}

// DefaultConfig targets a controller on localhost with the reference
// register map.
func DefaultConfig() *Config {
	return config.Default()
}

// DefaultLayout returns the reference plant register map.
func DefaultLayout() Layout {
	return domain.DefaultLayout()
}
