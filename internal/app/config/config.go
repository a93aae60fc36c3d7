package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/ModFlow/internal/adapters/influx"
	"github.com/ghalamif/ModFlow/internal/adapters/modbus"
	"github.com/ghalamif/ModFlow/internal/adapters/mqtt"
	"github.com/ghalamif/ModFlow/internal/adapters/observability"
	"github.com/ghalamif/ModFlow/internal/adapters/simulator"
	"github.com/ghalamif/ModFlow/internal/adapters/store"
	"github.com/ghalamif/ModFlow/internal/app/trigger"
	"github.com/ghalamif/ModFlow/internal/domain"
	"github.com/ghalamif/ModFlow/internal/ports"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "MODFLOW_"

type Config struct {
	Poll      ports.Policy                `yaml:"poll"`
	Modbus    modbus.Config               `yaml:"modbus"`
	Record    domain.Layout               `yaml:"record"`
	Trigger   trigger.Config              `yaml:"trigger"`
	Store     store.Config                `yaml:"store"`
	Metrics   MetricsConfig               `yaml:"metrics"`
	Logging   observability.LoggingConfig `yaml:"logging"`
	MQTT      mqtt.Config                 `yaml:"mqtt"`
	Influx    influx.Config               `yaml:"influx"`
	Simulator simulator.Config            `yaml:"simulator"`
}

type MetricsConfig struct {
	// Addr of the ops server. "off" disables it.
	Addr string `yaml:"addr"`
}

func (m MetricsConfig) Enabled() bool { return m.Addr != "off" }

// Load reads path (skipped when empty), applies a .env file if one exists,
// then MODFLOW_* overrides, defaults and validation. Every failure other than
// a missing file is a *domain.ConfigError.
func Load(path string) (*Config, error) {
	var raw []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		raw = b
	}
	// A missing .env is the normal case.
	_ = godotenv.Load()
	return Parse(raw, os.LookupEnv)
}

// Parse builds a Config from YAML bytes and an environment lookup.
func Parse(raw []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, &domain.ConfigError{Field: "yaml", Reason: err.Error()}
		}
	}
	if lookup != nil {
		if err := cfg.applyEnv(lookup); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration pointing at a local controller.
func Default() *Config {
	cfg := Config{Modbus: modbus.Config{Host: "127.0.0.1"}}
	cfg.applyDefaults()
	return &cfg
}

// Normalize fills defaults and validates a Config built in code.
func (c *Config) Normalize() error {
	c.applyDefaults()
	return c.validate()
}

func (c *Config) applyDefaults() {
	if c.Poll.Interval == 0 {
		c.Poll.Interval = time.Second
	}
	if c.Poll.FailureDelay == 0 {
		c.Poll.FailureDelay = c.Poll.Interval
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Record.IsZero() {
		c.Record = domain.DefaultLayout()
	}

	c.Modbus.ApplyDefaults()
	c.Trigger.ApplyDefaults()
	c.Store.ApplyDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.ApplyDefaults()
	}
	if c.Influx.Enabled() {
		c.Influx.ApplyDefaults()
	}
	if c.Simulator.Address == 0 {
		c.Simulator.Address = c.Modbus.Address
	}
	c.Simulator.ApplyDefaults()
}

func (c *Config) validate() error {
	if c.Poll.Interval <= 0 {
		return domain.Configf("poll.interval", "interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.FailureDelay < 0 {
		return domain.Configf("poll.failure_delay", "must not be negative")
	}
	if err := c.Modbus.Validate(); err != nil {
		return err
	}
	values := c.Modbus.Block().Values()
	if err := c.Record.Validate(values); err != nil {
		return err
	}
	if err := c.Trigger.Validate(values); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Influx.Validate(); err != nil {
		return err
	}
	return nil
}

// applyEnv overlays MODFLOW_* variables onto values read from YAML.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, bits int, set func(uint64)) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.ParseUint(v, 10, bits)
		if err != nil {
			errs = append(errs, domain.Configf(EnvPrefix+key, "invalid number %q", v))
			return
		}
		set(n)
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, domain.Configf(EnvPrefix+key, "invalid duration %q", v))
			return
		}
		// An explicit value never falls back to the default.
		if d <= 0 {
			errs = append(errs, domain.Configf(EnvPrefix+key, "duration must be positive, got %q", v))
			return
		}
		*dst = d
	}

	str("MODBUS_HOST", &c.Modbus.Host)
	num("MODBUS_PORT", 16, func(n uint64) { c.Modbus.Port = int(n) })
	num("MODBUS_UNIT_ID", 8, func(n uint64) { c.Modbus.UnitID = uint8(n) })
	num("MODBUS_ADDRESS", 16, func(n uint64) { c.Modbus.Address = uint16(n) })
	num("MODBUS_COUNT", 16, func(n uint64) { c.Modbus.Count = uint16(n) })
	dur("MODBUS_TIMEOUT", &c.Modbus.Timeout)
	dur("POLL_INTERVAL", &c.Poll.Interval)
	dur("POLL_FAILURE_DELAY", &c.Poll.FailureDelay)
	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_DSN", &c.Store.DSN)
	str("STORE_TABLE", &c.Store.Table)
	str("METRICS_ADDR", &c.Metrics.Addr)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("MQTT_BROKER", &c.MQTT.Broker)
	str("MQTT_USERNAME", &c.MQTT.Username)
	str("MQTT_PASSWORD", &c.MQTT.Password)
	str("INFLUX_URL", &c.Influx.URL)
	str("INFLUX_TOKEN", &c.Influx.Token)

	return errors.Join(errs...)
}
