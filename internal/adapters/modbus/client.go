package modbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	mb "github.com/goburrow/modbus"

	"github.com/ghalamif/ModFlow/internal/domain"
	"github.com/ghalamif/ModFlow/internal/ports"
)

// Register kinds.
const (
	Holding = "holding"
	Input   = "input"
)

// MaxReadCount is the largest even register count a single read may request.
const MaxReadCount = 124

// Config captures the controller endpoint and the block polled from it.
type Config struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	UnitID      uint8         `yaml:"unit_id"`
	Address     uint16        `yaml:"address"`
	Count       uint16        `yaml:"count"`
	Registers   string        `yaml:"registers"`
	Timeout     time.Duration `yaml:"timeout"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 502
	}
	if c.UnitID == 0 {
		c.UnitID = 1
	}
	if c.Address == 0 && c.Count == 0 {
		c.Address = 600
	}
	if c.Count == 0 {
		c.Count = 36
	}
	if c.Registers == "" {
		c.Registers = Holding
	}
	c.Registers = strings.ToLower(c.Registers)
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = time.Minute
	}
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return domain.Configf("modbus.host", "host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return domain.Configf("modbus.port", "port %d out of range", c.Port)
	}
	if c.Count == 0 || c.Count%2 != 0 {
		return domain.Configf("modbus.count", "count must be a positive even number, got %d", c.Count)
	}
	if c.Count > MaxReadCount {
		return domain.Configf("modbus.count", "count %d exceeds %d registers per read", c.Count, MaxReadCount)
	}
	if int(c.Address)+int(c.Count) > 65536 {
		return domain.Configf("modbus.address", "block %d+%d runs past the register space", c.Address, c.Count)
	}
	if c.Registers != Holding && c.Registers != Input {
		return domain.Configf("modbus.registers", "unknown register kind %q", c.Registers)
	}
	if c.Timeout <= 0 {
		return domain.Configf("modbus.timeout", "timeout must be positive, got %s", c.Timeout)
	}
	if c.IdleTimeout < 0 {
		return domain.Configf("modbus.idle_timeout", "must not be negative")
	}
	return nil
}

// Endpoint is the host:port dialed by the client.
func (c Config) Endpoint() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Block is the configured register range.
func (c Config) Block() domain.Block {
	return domain.Block{Address: c.Address, Count: c.Count}
}

// Client reads register blocks over one persistent Modbus/TCP connection.
// The connection is opened on first use and dropped after any failure, so
// the next read dials again.
type Client struct {
	cfg       Config
	handler   *mb.TCPClientHandler
	client    mb.Client
	mu        sync.Mutex
	connected bool
}

func NewClient(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := mb.NewTCPClientHandler(cfg.Endpoint())
	h.Timeout = cfg.Timeout
	h.IdleTimeout = cfg.IdleTimeout
	h.SlaveId = cfg.UnitID
	return &Client{
		cfg:     cfg,
		handler: h,
		client:  mb.NewClient(h),
	}, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// ReadBlock reads count registers starting at address. Every failure comes
// back as a *domain.TransportError.
func (c *Client) ReadBlock(ctx context.Context, address, count uint16) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, c.fail("read", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		if err := c.handler.Connect(); err != nil {
			return domain.Snapshot{}, c.failLocked("connect", err)
		}
		c.connected = true
	}

	var (
		raw []byte
		err error
	)
	if c.cfg.Registers == Input {
		raw, err = c.client.ReadInputRegisters(address, count)
	} else {
		raw, err = c.client.ReadHoldingRegisters(address, count)
	}
	if err != nil {
		return domain.Snapshot{}, c.failLocked("read", err)
	}
	if len(raw) != int(count)*2 {
		return domain.Snapshot{}, c.failLocked("read", fmt.Errorf("short response: %d bytes for %d registers", len(raw), count))
	}

	words := make([]uint16, count)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(raw[2*i:])
	}
	return domain.Snapshot{Address: address, Words: words}, nil
}

// Connected reports whether the last exchange left an open connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return c.handler.Close()
}

func (c *Client) fail(op string, err error) error {
	return &domain.TransportError{Op: op, Endpoint: c.cfg.Endpoint(), Err: err}
}

// failLocked drops the connection so the next call reconnects.
func (c *Client) failLocked(op string, err error) error {
	c.connected = false
	_ = c.handler.Close()
	return c.fail(op, err)
}

// IsException reports whether err carries a Modbus exception response.
func IsException(err error) bool {
	var me *mb.ModbusError
	return errors.As(err, &me)
}

var _ ports.Transport = (*Client)(nil)
