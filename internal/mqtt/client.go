// Package mqtt mirrors bridge readings to an MQTT broker as JSON telemetry.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"dht-homekit/internal/config"
	"dht-homekit/internal/sensor"
)

const publishTimeout = 5 * time.Second

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	ErrStopped      = errors.New("mqtt client stopped")
)

type Client struct {
	client    mqtt.Client
	stationID string
	broker    string
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
	sequence  atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

type Telemetry struct {
	StationID   string    `json:"station_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
	Sequence    *int64    `json:"sequence,omitempty"`
}

type StationHealth struct {
	StationID string    `json:"station_id"`
	LastSeen  time.Time `json:"last_seen"`
	Healthy   bool      `json:"healthy"`
}

func TelemetryTopic(stationID string) string {
	return fmt.Sprintf("stations/%s/telemetry", stationID)
}

func HealthTopic(stationID string) string {
	return fmt.Sprintf("stations/%s/health", stationID)
}

func NewClient(cfg config.Config, logger *slog.Logger) (*Client, error) {
	if !cfg.MQTTEnabled() {
		return nil, errors.New("mqtt: no broker configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		stationID: cfg.DeviceStationID,
		broker:    fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.broker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Subscribers see the station go unhealthy if we vanish without a
	// clean disconnect.
	will, err := json.Marshal(StationHealth{StationID: c.stationID, Healthy: false})
	if err != nil {
		return nil, fmt.Errorf("marshal will: %w", err)
	}
	opts.SetBinaryWill(HealthTopic(c.stationID), will, 1, true)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", c.broker)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect waits for the initial connection, respecting ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry the token may stay pending while paho retries.
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				// Disconnect can fail a pending token; report why we stopped.
				select {
				case <-c.stopCh:
					return ErrStopped
				default:
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return ErrStopped
		default:
		}
	}
}

// Record implements bridge.Recorder: the reading goes out as telemetry and
// the station is marked healthy.
func (c *Client) Record(_ context.Context, r sensor.Reading) error {
	seq := c.sequence.Add(1)
	t := Telemetry{
		Timestamp:   r.Time,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Sequence:    &seq,
	}
	if err := c.PublishTelemetry(t); err != nil {
		return err
	}
	return c.PublishStationHealth(StationHealth{
		StationID: c.stationID,
		LastSeen:  r.Time,
		Healthy:   true,
	})
}

func (c *Client) PublishTelemetry(telemetry Telemetry) error {
	telemetry.StationID = c.stationID
	if telemetry.Timestamp.IsZero() {
		telemetry.Timestamp = time.Now()
	}

	data, err := json.Marshal(telemetry)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	topic := TelemetryTopic(c.stationID)
	if err := c.publish(topic, data, false); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}

	c.logger.Debug("published telemetry", "topic", topic, "sequence", telemetry.Sequence)
	return nil
}

// PublishStationHealth publishes a retained last-seen record.
func (c *Client) PublishStationHealth(health StationHealth) error {
	if health.LastSeen.IsZero() {
		health.LastSeen = time.Now()
	}

	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("marshal health: %w", err)
	}

	topic := HealthTopic(health.StationID)
	if err := c.publish(topic, data, true); err != nil {
		return fmt.Errorf("publish health: %w", err)
	}

	c.logger.Debug("published station health",
		"topic", topic,
		"last_seen", health.LastSeen,
		"healthy", health.Healthy,
	)
	return nil
}

func (c *Client) publish(topic string, payload []byte, retained bool) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout on topic %s", topic)
	}
	return token.Error()
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the connection. Idempotent; after
// it, Connect returns ErrStopped.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
