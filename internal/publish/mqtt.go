// Package publish pushes run outcomes to an MQTT broker as retained JSON.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"battery_scheduler/internal/logger"
	"battery_scheduler/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	DefaultTopic    = "battery_scheduler"
	DefaultClientID = "battery-scheduler"
	DefaultTimeout  = 5 * time.Second

	availabilityOnline  = "online"
	availabilityOffline = "offline"
	disconnectQuiesceMs = 250
)

var ErrTimeout = errors.New("mqtt operation timed out")

type Config struct {
	Broker   string // tcp://host:1883
	ClientID string
	Username string
	Password string
	Topic    string // prefix, e.g. battery_scheduler
	QoS      byte
	Timeout  time.Duration
}

// Publisher writes <topic>/<mode>/status and keeps <topic>/status as an
// availability flag via the broker's last will.
type Publisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	log     *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if log == nil {
		log = logger.Nop()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetKeepAlive(60*time.Second).
		SetPingTimeout(10*time.Second).
		SetWill(cfg.Topic+"/status", availabilityOffline, cfg.QoS, true)
	opts.OnConnect = func(c mqtt.Client) {
		log.Infow("mqtt_connected", "broker", cfg.Broker)
		c.Publish(cfg.Topic+"/status", cfg.QoS, true, availabilityOnline)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warnw("mqtt_connection_lost", "err", err)
	}
	return newWithClient(mqtt.NewClient(opts), cfg, log)
}

func newWithClient(client mqtt.Client, cfg Config, log *logger.Logger) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{client: client, topic: cfg.Topic, qos: cfg.QoS, timeout: cfg.Timeout, log: log}
}

// Connect dials the broker once. Reconnects are handled by the client.
func (p *Publisher) Connect(ctx context.Context) error {
	if err := p.wait(ctx, p.client.Connect()); err != nil {
		return fmt.Errorf("connect mqtt broker: %w", err)
	}
	return nil
}

// StatusTopic is where outcomes of mode are retained.
func (p *Publisher) StatusTopic(mode models.Mode) string {
	return fmt.Sprintf("%s/%s/status", p.topic, mode)
}

// PublishRun retains s on the mode's status topic.
func (p *Publisher) PublishRun(ctx context.Context, s models.RunStatus) error {
	if !p.client.IsConnected() {
		return errors.New("mqtt client not connected")
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal run status: %w", err)
	}
	topic := p.StatusTopic(s.Mode)
	if err := p.wait(ctx, p.client.Publish(topic, p.qos, true, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.Debugw("run_status_published", "topic", topic, "run_id", s.RunID)
	return nil
}

// Close marks the scheduler offline and disconnects.
func (p *Publisher) Close() {
	if !p.client.IsConnected() {
		return
	}
	p.client.Publish(p.topic+"/status", p.qos, true, availabilityOffline).WaitTimeout(p.timeout)
	p.client.Disconnect(disconnectQuiesceMs)
}

func (p *Publisher) wait(ctx context.Context, tok mqtt.Token) error {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}
