package modbus

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandon/mbserver"

	"github.com/ghalamif/ModFlow/internal/domain"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func startServer(t *testing.T, port int, seed func(*mbserver.Server)) *mbserver.Server {
	t.Helper()
	s := mbserver.NewServer()
	if seed != nil {
		seed(s)
	}
	require.NoError(t, s.ListenTCP("127.0.0.1:"+strconv.Itoa(port)))
	t.Cleanup(s.Close)
	return s
}

func newTestClient(t *testing.T, port int, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{Host: "127.0.0.1", Port: port, Address: 600, Count: 4, Timeout: 500 * time.Millisecond}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestReadBlockHoldingRegisters(t *testing.T) {
	port := freePort(t)
	startServer(t, port, func(s *mbserver.Server) {
		copy(s.HoldingRegisters[600:], []uint16{0xCCCD, 0x404C, 0x0000, 0x3F80})
	})
	c := newTestClient(t, port, nil)

	snap, err := c.ReadBlock(context.Background(), 600, 4)
	require.NoError(t, err)
	assert.Equal(t, uint16(600), snap.Address)
	assert.Equal(t, []uint16{0xCCCD, 0x404C, 0x0000, 0x3F80}, snap.Words)
	assert.True(t, c.Connected())
}

func TestReadBlockInputRegisters(t *testing.T) {
	port := freePort(t)
	startServer(t, port, func(s *mbserver.Server) {
		s.InputRegisters[10] = 7
		s.InputRegisters[11] = 9
	})
	c := newTestClient(t, port, func(cfg *Config) { cfg.Registers = Input })

	snap, err := c.ReadBlock(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{7, 9}, snap.Words)
}

func TestReadBlockRefusedThenRecovers(t *testing.T) {
	port := freePort(t)
	c := newTestClient(t, port, nil)

	_, err := c.ReadBlock(context.Background(), 600, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport))
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "connect", te.Op)
	assert.False(t, c.Connected())

	startServer(t, port, func(s *mbserver.Server) { s.HoldingRegisters[601] = 1 })

	snap, err := c.ReadBlock(context.Background(), 600, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 1, 0, 0}, snap.Words)
}

func TestReadBlockExceptionResponse(t *testing.T) {
	port := freePort(t)
	startServer(t, port, nil)
	c := newTestClient(t, port, nil)

	_, err := c.ReadBlock(context.Background(), 65530, 6)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport))
	assert.True(t, IsException(err))
	assert.False(t, c.Connected())
}

func TestReadBlockTimeout(t *testing.T) {
	// Accept and hold connections without ever answering.
	held := make(chan net.Conn, 4)
	t.Cleanup(func() {
		close(held)
		for conn := range held {
			_ = conn.Close()
		}
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			select {
			case held <- conn:
			default:
				_ = conn.Close()
			}
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	c := newTestClient(t, port, func(cfg *Config) { cfg.Timeout = 150 * time.Millisecond })

	start := time.Now()
	_, err = c.ReadBlock(context.Background(), 600, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestReadBlockCanceledContext(t *testing.T) {
	c := newTestClient(t, freePort(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ReadBlock(ctx, 600, 4)
	assert.True(t, errors.Is(err, domain.ErrTransport))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	cfg := Config{Host: "plc"}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 502, cfg.Port)
	assert.Equal(t, uint8(1), cfg.UnitID)
	assert.Equal(t, domain.Block{Address: 600, Count: 36}, cfg.Block())
	assert.Equal(t, Holding, cfg.Registers)
	assert.Equal(t, "plc:502", cfg.Endpoint())

	bad := []Config{
		{Port: 502, Count: 2, Registers: Holding},
		{Host: "plc", Port: 502, Count: 3, Registers: Holding},
		{Host: "plc", Port: 502, Count: 126, Registers: Holding},
		{Host: "plc", Port: 502, Address: 65534, Count: 4, Registers: Holding},
		{Host: "plc", Port: 502, Count: 2, Registers: "coils"},
		{Host: "plc", Port: 70000, Count: 2, Registers: Holding},
		{Host: "plc", Port: 502, Count: 2, Registers: Holding, Timeout: -time.Second},
	}
	for i, b := range bad {
		err := b.Validate()
		assert.True(t, errors.Is(err, domain.ErrInvalidConfig), "case %d: %v", i, err)
	}

	negative := Config{Host: "plc", Timeout: -time.Second}
	negative.ApplyDefaults()
	assert.Equal(t, -time.Second, negative.Timeout)
	assert.True(t, errors.Is(negative.Validate(), domain.ErrInvalidConfig))
}
