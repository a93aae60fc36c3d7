package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghalamif/ModFlow/internal/adapters/store"
	"github.com/ghalamif/ModFlow/internal/domain"
)

func env(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
modbus:
  host: 10.0.0.5
poll:
  interval: 2s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Poll.Interval != 2*time.Second {
		t.Fatalf("expected interval 2s, got %s", cfg.Poll.Interval)
	}
	if cfg.Poll.FailureDelay != 2*time.Second {
		t.Fatalf("expected failure delay to default to interval, got %s", cfg.Poll.FailureDelay)
	}
	if cfg.Modbus.Address != 600 || cfg.Modbus.Count != 36 || cfg.Modbus.Port != 502 {
		t.Fatalf("unexpected modbus defaults: %+v", cfg.Modbus)
	}
	if len(cfg.Record.Fields) != 18 || cfg.Record.BatchPosition != 1 {
		t.Fatalf("expected default register map, got %+v", cfg.Record)
	}
	if len(cfg.Trigger.Positions) != 1 || cfg.Trigger.Positions[0] != 11 {
		t.Fatalf("expected trigger on position 11, got %v", cfg.Trigger.Positions)
	}
	if cfg.Store.Driver != store.DriverSQLite || cfg.Store.Table != "register_data" {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.MQTT.Enabled() || cfg.Influx.Enabled() {
		t.Fatalf("optional outputs should be disabled by default")
	}
	if cfg.Simulator.Address != 600 {
		t.Fatalf("expected simulator to follow modbus address, got %d", cfg.Simulator.Address)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseCustomLayout(t *testing.T) {
	data := `
modbus:
  host: plc
  address: 0
  count: 6
record:
  batch_position: 3
  fields:
    - {position: 1, name: speed}
    - {position: 2, name: running}
  flags:
    - {position: 2, name: running_flag}
trigger:
  positions: [2]
`
	cfg, err := Parse([]byte(data), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Modbus.Count != 6 || cfg.Modbus.Address != 0 {
		t.Fatalf("unexpected block %+v", cfg.Modbus.Block())
	}
	if got := cfg.Record.Columns(); len(got) != 3 || got[0] != "running_flag" {
		t.Fatalf("unexpected columns %v", got)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	cfg, err := Parse([]byte("modbus:\n  host: yaml-host\n"), env(map[string]string{
		"MODFLOW_MODBUS_HOST":   "env-host",
		"MODFLOW_MODBUS_PORT":   "1502",
		"MODFLOW_POLL_INTERVAL": "250ms",
		"MODFLOW_STORE_DRIVER":  "postgres",
		"MODFLOW_STORE_DSN":     "postgres://u:p@db/modflow",
		"MODFLOW_LOG_LEVEL":     "debug",
		"MODFLOW_MQTT_BROKER":   "tcp://broker:1883",
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Modbus.Host != "env-host" || cfg.Modbus.Port != 1502 {
		t.Fatalf("modbus overrides not applied: %+v", cfg.Modbus)
	}
	if cfg.Poll.Interval != 250*time.Millisecond {
		t.Fatalf("expected 250ms interval, got %s", cfg.Poll.Interval)
	}
	if cfg.Store.Driver != store.DriverPostgres || cfg.Store.DSN != "postgres://u:p@db/modflow" {
		t.Fatalf("store overrides not applied: %+v", cfg.Store)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %s", cfg.Logging.Level)
	}
	if !cfg.MQTT.Enabled() || cfg.MQTT.TopicPrefix != "modflow" {
		t.Fatalf("expected mqtt enabled with defaults, got %+v", cfg.MQTT)
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := map[string]struct {
		yaml string
		env  map[string]string
	}{
		"missing host":            {yaml: "poll: {interval: 1s}\n"},
		"odd count":               {yaml: "modbus: {host: plc, count: 35}\n"},
		"trigger past end":        {yaml: "modbus: {host: plc}\ntrigger: {positions: [19]}\n"},
		"layout too wide":         {yaml: "modbus: {host: plc, count: 10}\n"},
		"bad driver":              {yaml: "modbus: {host: plc}\nstore: {driver: oracle, dsn: x}\n"},
		"bad yaml":                {yaml: "modbus: [\n"},
		"bad env port":            {yaml: "modbus: {host: plc}\n", env: map[string]string{"MODFLOW_MODBUS_PORT": "abc"}},
		"bad env duration":        {yaml: "modbus: {host: plc}\n", env: map[string]string{"MODFLOW_POLL_INTERVAL": "soon"}},
		"negative interval":       {yaml: "modbus: {host: plc}\npoll: {interval: -5s}\n"},
		"zero interval via env":   {yaml: "modbus: {host: plc}\n", env: map[string]string{"MODFLOW_POLL_INTERVAL": "0s"}},
		"negative failure delay":  {yaml: "modbus: {host: plc}\npoll: {failure_delay: -1s}\n"},
		"negative modbus timeout": {yaml: "modbus: {host: plc, timeout: -1s}\n"},
		"zero timeout via env":    {yaml: "modbus: {host: plc}\n", env: map[string]string{"MODFLOW_MODBUS_TIMEOUT": "0s"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), env(tc.env))
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
			var ce *domain.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *domain.ConfigError, got %T", err)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
