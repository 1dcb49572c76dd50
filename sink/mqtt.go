package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kbukum/plcstream/component"
	"github.com/kbukum/plcstream/errors"
	"github.com/kbukum/plcstream/logger"
)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Broker         string        `yaml:"broker" mapstructure:"broker" validate:"required,url"`
	ClientID       string        `yaml:"client_id" mapstructure:"client_id"`
	Username       string        `yaml:"username" mapstructure:"username"`
	Password       string        `yaml:"password" mapstructure:"password"`
	TopicPrefix    string        `yaml:"topic_prefix" mapstructure:"topic_prefix"`
	QoS            byte          `yaml:"qos" mapstructure:"qos" validate:"lte=2"`
	Retained       bool          `yaml:"retained" mapstructure:"retained"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout" mapstructure:"publish_timeout"`
}

// ApplyDefaults fills unset fields.
func (c *MQTTConfig) ApplyDefaults() {
	if c.ClientID == "" {
		c.ClientID = "plcstream-" + uuid.NewString()[:8]
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "plcstream"
	}
	c.TopicPrefix = strings.TrimSuffix(c.TopicPrefix, "/")
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
}

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
}

// MQTT publishes each value as JSON to <topic_prefix>/<key>, where key
// is derived from the value.
type MQTT[T any] struct {
	cfg    MQTTConfig
	key    func(T) string
	client publisher
	log    *logger.Logger
}

var (
	_ component.Component = (*MQTT[int])(nil)
	_ Sink[int]           = (*MQTT[int])(nil)
)

// NewMQTT returns an unconnected MQTT sink. key picks the topic suffix
// for each value, e.g. the item name.
func NewMQTT[T any](cfg MQTTConfig, key func(T) string, log *logger.Logger) *MQTT[T] {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Get("sink")
	}
	log = log.WithFields(map[string]interface{}{"broker": cfg.Broker})

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost", logger.ErrorFields("connect", err))
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("MQTT connected")
	})

	return &MQTT[T]{cfg: cfg, key: key, client: mqtt.NewClient(opts), log: log}
}

// Name implements component.Component.
func (m *MQTT[T]) Name() string { return "sink:mqtt" }

// IsAvailable reports whether the broker connection is up.
func (m *MQTT[T]) IsAvailable(context.Context) bool { return m.client.IsConnectionOpen() }

// Start connects to the broker.
func (m *MQTT[T]) Start(ctx context.Context) error {
	token := m.client.Connect()
	if err := wait(ctx, token, m.cfg.ConnectTimeout, "mqtt connect"); err != nil {
		return errors.ConnectionFailed(m.cfg.Broker, err)
	}
	return nil
}

// Stop disconnects, allowing in-flight publishes 250ms to finish.
func (m *MQTT[T]) Stop(context.Context) error {
	m.client.Disconnect(250)
	return nil
}

// Health reports whether the broker connection is up.
func (m *MQTT[T]) Health(context.Context) component.Health {
	h := component.Health{Name: m.Name(), Status: component.StatusHealthy}
	if !m.client.IsConnectionOpen() {
		h.Status = component.StatusUnhealthy
		h.Message = "not connected to " + m.cfg.Broker
	}
	return h
}

// Describe implements component.Describable.
func (m *MQTT[T]) Describe() component.Description {
	return component.Description{
		Type:    "sink",
		Details: fmt.Sprintf("%s topic=%s/# qos=%d", m.cfg.Broker, m.cfg.TopicPrefix, m.cfg.QoS),
	}
}

// Topic returns the topic v is published to.
func (m *MQTT[T]) Topic(v T) string {
	return m.cfg.TopicPrefix + "/" + m.key(v)
}

// Send publishes v and waits at most PublishTimeout for the broker.
func (m *MQTT[T]) Send(ctx context.Context, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Internal(err)
	}
	topic := m.Topic(v)
	token := m.client.Publish(topic, m.cfg.QoS, m.cfg.Retained, payload)
	if err := wait(ctx, token, m.cfg.PublishTimeout, "mqtt publish "+topic); err != nil {
		m.log.WithContext(ctx).Warn("Publish failed", logger.MergeWithError(map[string]interface{}{"topic": topic}, err))
		return err
	}
	return nil
}

func wait(ctx context.Context, token mqtt.Token, timeout time.Duration, op string) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.Timeout(op)
	case <-ctx.Done():
		return ctx.Err()
	}
}
