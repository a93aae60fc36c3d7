package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"

	"github.com/ghalamif/ModFlow"
	"github.com/ghalamif/ModFlow/internal/adapters/observability"
	"github.com/ghalamif/ModFlow/internal/adapters/simulator"
)

//go:embed assets/banner_color.ansi
var bannerColor string

//go:embed assets/banner_plain.txt
var bannerPlain string

var logger = logrus.New()

func main() {
	fmt.Print(selectBanner())
	fmt.Println()
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "simulate":
		err = simulateCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		logger.WithField("command", cmd).Fatalf("modflow-edge: %v", err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to edge configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := modflow.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := modflow.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good ✅ (%s:%d, %d registers from %d, store %s)\n",
		*cfgPath, cfg.Modbus.Host, cfg.Modbus.Port, cfg.Modbus.Count, cfg.Modbus.Address, cfg.Store.Driver)
	return nil
}

func simulateCommand(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Optional configuration file; its simulator section is used")
	addr := fs.String("addr", "", "Listen address (overrides config)")
	interval := fs.Duration("interval", 0, "Value refresh interval (overrides config)")
	seed := fs.Int64("seed", 0, "Random seed, 0 for time-based")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := modflow.DefaultConfig()
	if *cfgPath != "" {
		loaded, err := modflow.LoadConfig(*cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	simCfg := cfg.Simulator
	if *addr != "" {
		simCfg.Addr = *addr
	}
	if *interval > 0 {
		simCfg.Interval = *interval
	}
	if *seed != 0 {
		simCfg.Seed = *seed
	}

	log := observability.NewLogger(cfg.Logging, os.Stderr)
	sim := simulator.New(simCfg, log.WithField("component", "simulator"))
	if err := sim.Listen(); err != nil {
		return fmt.Errorf("listen %s: %w", simCfg.Addr, err)
	}
	defer sim.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Simulating controller on %s (Ctrl+C to stop)\n", simCfg.Addr)
	return sim.Run(ctx)
}

func selectBanner() string {
	if os.Getenv("NO_COLOR") != "" {
		return bannerPlain
	}
	return bannerColor
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: *interval}
	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, client, *url); err != nil {
				logger.WithError(err).Warn("stats scrape failed")
			}
		}
	}
}

var statsTargets = []string{
	"modflow_cycles_total",
	"modflow_records_persisted_total",
	"modflow_cycles_skipped_total",
	"modflow_transport_failures_total",
	"modflow_controller_connected",
}

func printMetricsSnapshot(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return err
	}

	values := make([]float64, len(statsTargets))
	for i, name := range statsTargets {
		values[i] = firstValue(families[name])
	}

	fmt.Printf("[%s] cycles=%.0f persisted=%.0f skipped=%.0f transport_failures=%.0f connected=%.0f\n",
		time.Now().Format(time.RFC3339), values[0], values[1], values[2], values[3], values[4])
	return nil
}

// firstValue reads the first sample of a counter or gauge family.
func firstValue(mf *dto.MetricFamily) float64 {
	if mf == nil || len(mf.GetMetric()) == 0 {
		return 0
	}
	m := mf.GetMetric()[0]
	if c := m.GetCounter(); c != nil {
		return c.GetValue()
	}
	return m.GetGauge().GetValue()
}

func printUsage() {
	fmt.Printf(`ModFlow CLI

Usage:
  modflow-edge <command> [flags]

Commands:
  run        Poll the controller and persist qualifying readings
  validate   Load and validate a config file without starting the runtime
  stats      Poll the Prometheus metrics endpoint and print live counters
  simulate   Serve a simulated plant controller over Modbus/TCP

Examples:
  modflow-edge run -config ./data/config.yaml
  modflow-edge validate -config ./data/config.yaml
  modflow-edge stats -url http://localhost:9100/metrics -interval 1s
  modflow-edge simulate -addr 127.0.0.1:8502 -interval 10s
`)
}
