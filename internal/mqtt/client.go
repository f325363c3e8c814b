// Package mqtt publishes detection events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dronewatch/dronewatch-go/internal/analysis"
	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/errors"
	"github.com/dronewatch/dronewatch-go/internal/logging"
)

const (
	connectTimeout    = 30 * time.Second
	publishTimeout    = 10 * time.Second
	reconnectCooldown = 5 * time.Second
)

func getLogger() *slog.Logger {
	if l := logging.ForService("mqtt"); l != nil {
		return l
	}
	return slog.Default()
}

// Client wraps a paho MQTT connection for detection publishing. Methods are
// safe for concurrent use.
type Client struct {
	settings *conf.MQTTSettings

	mu              sync.Mutex
	internalClient  pahomqtt.Client
	lastConnAttempt time.Time
}

// NewClient builds a client from the MQTT settings; call Connect before
// publishing.
func NewClient(settings *conf.Settings) *Client {
	return &Client{settings: &settings.MQTT}
}

// Connect establishes the broker connection. Repeated attempts inside the
// cooldown window are rejected so a flapping broker does not get hammered.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastConnAttempt) < reconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago",
			time.Since(c.lastConnAttempt)).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	c.lastConnAttempt = time.Now()

	if err := c.resolveBroker(ctx); err != nil {
		return err
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.settings.Broker)
	opts.SetClientID(c.settings.ClientID)
	opts.SetUsername(c.settings.Username)
	opts.SetPassword(c.settings.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		getLogger().Info("connected to MQTT broker", "broker", c.settings.Broker)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		getLogger().Warn("MQTT connection lost", "broker", c.settings.Broker, "error", err)
	})

	c.internalClient = pahomqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.Newf("connection timeout").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.settings.Broker).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("connection error: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.settings.Broker).
			Build()
	}
	return nil
}

// resolveBroker fails fast on unresolvable hostnames instead of letting the
// paho retry loop mask a typo in the config.
func (c *Client) resolveBroker(ctx context.Context) error {
	u, err := url.Parse(c.settings.Broker)
	if err != nil {
		return errors.New(fmt.Errorf("invalid broker URL: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.settings.Broker).
			Build()
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return nil
	}
	if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
		return errors.New(fmt.Errorf("failed to resolve broker hostname %s: %w", host, err)).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.settings.Broker).
			Build()
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// PublishDetection sends a detection result as JSON on the configured topic.
func (c *Client) PublishDetection(ctx context.Context, result *analysis.DetectionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.New(fmt.Errorf("failed to encode detection: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Build()
	}
	return c.Publish(ctx, c.settings.Topic, payload)
}

// Publish sends a raw payload to the given topic.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient == nil || !c.internalClient.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	token := c.internalClient.Publish(topic, 0, c.settings.Retain, payload)
	if !token.WaitTimeout(timeout) {
		return errors.Newf("publish timeout").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("publish error: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	return nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil {
		c.internalClient.Disconnect(250)
		c.internalClient = nil
	}
}
