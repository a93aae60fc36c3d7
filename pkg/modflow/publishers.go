package modflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrChannelPublisherClosed is returned when a channel publisher is used after close.
	ErrChannelPublisherClosed = errors.New("modflow: channel publisher closed")
	// ErrChannelPublisherFull is returned when the consumer has not drained the buffer.
	// The record stays committed; only the notification is lost.
	ErrChannelPublisherFull = errors.New("modflow: channel publisher full")
)

// RecordHandler receives every committed record.
type RecordHandler func(ctx context.Context, rec Record) error

// NewCallbackPublisher adapts a RecordHandler into a RecordPublisher so callers
// can plug arbitrary functions without defining structs.
func NewCallbackPublisher(name string, fn RecordHandler) RecordPublisher {
	if name == "" {
		name = "callback"
	}
	return &callbackPublisher{name: name, fn: fn}
}

// NewChannelPublisher exposes committed records via a channel; it returns the
// publisher, the read-only channel, and a close function the caller should
// invoke during shutdown. Sends never block the poll loop.
func NewChannelPublisher(name string, buffer int) (RecordPublisher, <-chan Record, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Record, buffer)
	p := &channelPublisher{
		name: name,
		ch:   ch,
	}
	return p, ch, p.close
}

type callbackPublisher struct {
	name string
	fn   RecordHandler
}

func (p *callbackPublisher) Publish(ctx context.Context, rec Record) error {
	if p.fn == nil {
		return fmt.Errorf("callback publisher %q: nil handler", p.name)
	}
	return p.fn(ctx, rec)
}

func (p *callbackPublisher) Name() string { return p.name }

type channelPublisher struct {
	name   string
	ch     chan Record
	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (p *channelPublisher) Publish(_ context.Context, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrChannelPublisherClosed
	}
	select {
	case p.ch <- rec:
		return nil
	default:
		return ErrChannelPublisherFull
	}
}

func (p *channelPublisher) Name() string { return p.name }

func (p *channelPublisher) close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.ch)
		p.mu.Unlock()
	})
}
