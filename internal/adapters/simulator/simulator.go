// Package simulator serves a fake plant controller over Modbus/TCP for bench
// testing. Values are written with the same word order the poller decodes.
package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tbrandon/mbserver"

	"github.com/ghalamif/ModFlow/internal/app/decode"
	"github.com/ghalamif/ModFlow/internal/domain"
)

// Config for the simulated controller.
type Config struct {
	Addr     string        `yaml:"addr"`
	Address  uint16        `yaml:"address"`
	Interval time.Duration `yaml:"interval"`
	Seed     int64         `yaml:"seed"`
}

func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8502"
	}
	if c.Address == 0 {
		c.Address = 600
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Simulator owns an mbserver instance whose register banks are guarded by mu.
type Simulator struct {
	cfg Config
	srv *mbserver.Server
	log logrus.FieldLogger

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(cfg Config, log logrus.FieldLogger) *Simulator {
	cfg.ApplyDefaults()
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Simulator{
		cfg: cfg,
		srv: mbserver.NewServer(),
		log: log,
		rnd: rand.New(rand.NewSource(cfg.Seed)),
	}
	s.srv.RegisterFunctionHandler(3, s.locked(mbserver.ReadHoldingRegisters))
	s.srv.RegisterFunctionHandler(4, s.locked(mbserver.ReadInputRegisters))
	return s
}

func (s *Simulator) locked(fn func(*mbserver.Server, mbserver.Framer) ([]byte, *mbserver.Exception)) func(*mbserver.Server, mbserver.Framer) ([]byte, *mbserver.Exception) {
	return func(srv *mbserver.Server, f mbserver.Framer) ([]byte, *mbserver.Exception) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(srv, f)
	}
}

// Listen starts accepting connections on cfg.Addr.
func (s *Simulator) Listen() error {
	return s.srv.ListenTCP(s.cfg.Addr)
}

// Set writes r into both register banks starting at the configured address.
func (s *Simulator) Set(r domain.Reading) {
	words := decode.Encode(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.srv.HoldingRegisters[s.cfg.Address:], words)
	copy(s.srv.InputRegisters[s.cfg.Address:], words)
}

// Tick publishes one random plant reading and returns it.
func (s *Simulator) Tick() domain.Reading {
	s.mu.Lock()
	r := s.plant()
	s.mu.Unlock()
	s.Set(r)
	return r
}

// plant draws the 18 values of the reference register map. The last
// position is always 1.
func (s *Simulator) plant() domain.Reading {
	between := func(lo, hi float64) float32 { return float32(lo + s.rnd.Float64()*(hi-lo)) }
	bit := func() float32 { return float32(s.rnd.Intn(2)) }

	return domain.Reading{
		float32(1 + s.rnd.Intn(10)),
		between(1200, 3000),
		between(5, 20),
		between(10, 90),
		between(100, 500),
		between(20, 80),
		between(500, 1500),
		between(30, 180),
		between(30, 200),
		between(1000, 3000),
		bit(),
		bit(),
		bit(),
		bit(),
		bit(),
		float32(1 + s.rnd.Intn(5)),
		bit(),
		1,
	}
}

// Run ticks once immediately and then every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		r := s.Tick()
		s.log.WithFields(logrus.Fields{
			"batch":      r[0],
			"machine_on": r[10],
		}).Info("simulator values published")

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (s *Simulator) Close() {
	s.srv.Close()
}
