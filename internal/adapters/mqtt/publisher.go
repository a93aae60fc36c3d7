// Package mqtt forwards committed records to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ghalamif/ModFlow/internal/domain"
	"github.com/ghalamif/ModFlow/internal/ports"
)

var (
	ErrNotConnected  = errors.New("mqtt: not connected")
	ErrPublishFailed = errors.New("mqtt: publish failed")
)

// Config for the record publisher. An empty Broker disables publishing.
type Config struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            byte          `yaml:"qos"`
	Retain         bool          `yaml:"retain"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

func (c Config) Enabled() bool { return c.Broker != "" }

func (c *Config) ApplyDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "modflow"
	}
	c.TopicPrefix = strings.TrimSuffix(c.TopicPrefix, "/")
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.QoS > 2 {
		return domain.Configf("mqtt.qos", "qos must be 0, 1 or 2, got %d", c.QoS)
	}
	if strings.ContainsAny(c.TopicPrefix, "+#") {
		return domain.Configf("mqtt.topic_prefix", "wildcards are not allowed in %q", c.TopicPrefix)
	}
	return nil
}

// Publisher sends each record as JSON to <prefix>/records/<batch_id>.
type Publisher struct {
	client pahomqtt.Client
	cfg    Config
}

// Connect dials the broker with auto-reconnect enabled.
func Connect(cfg Config) (*Publisher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout after %v", cfg.Broker, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return NewPublisher(client, cfg), nil
}

// NewPublisher wraps an already connected client.
func NewPublisher(client pahomqtt.Client, cfg Config) *Publisher {
	cfg.ApplyDefaults()
	return &Publisher{client: client, cfg: cfg}
}

func (p *Publisher) Name() string { return "mqtt" }

// Topic returns the topic a record is published on.
func (p *Publisher) Topic(rec domain.Record) string {
	batch := rec.BatchID
	if batch == "" {
		batch = "none"
	}
	return p.cfg.TopicPrefix + "/records/" + batch
}

func (p *Publisher) Publish(ctx context.Context, rec domain.Record) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(payloadFields(rec))
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPublishFailed, err)
	}

	timeout := p.cfg.PublishTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	token := p.client.Publish(p.Topic(rec), p.cfg.QoS, p.cfg.Retain, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// payloadFields is rec.Fields() with NaN and ±Inf values sent as null, since
// JSON cannot carry them.
func payloadFields(rec domain.Record) map[string]any {
	fields := rec.Fields()
	for k, v := range fields {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			fields[k] = nil
		}
	}
	return fields
}

// Close disconnects, allowing in-flight messages 250ms to drain.
func (p *Publisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}

var _ ports.RecordPublisher = (*Publisher)(nil)
