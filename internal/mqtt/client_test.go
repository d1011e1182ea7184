package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"dht-homekit/internal/config"
	"dht-homekit/internal/sensor"
)

func testConfig() config.Config {
	return config.Config{
		MQTTBroker:      "127.0.0.1",
		MQTTPort:        1,
		MQTTClientID:    "dht-homekit-test",
		DeviceStationID: "attic",
	}
}

func TestNewClient_RequiresBroker(t *testing.T) {
	cfg := testConfig()
	cfg.MQTTBroker = ""

	if _, err := NewClient(cfg, slog.Default()); err == nil {
		t.Fatal("NewClient error = nil, want error without broker")
	}
}

func TestTopics(t *testing.T) {
	if got := TelemetryTopic("attic"); got != "stations/attic/telemetry" {
		t.Errorf("TelemetryTopic = %q", got)
	}
	if got := HealthTopic("attic"); got != "stations/attic/health" {
		t.Errorf("HealthTopic = %q", got)
	}
}

func TestRecord_NotConnected(t *testing.T) {
	c, err := NewClient(testConfig(), slog.Default())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = c.Record(context.Background(), sensor.NewReading(22, 55, time.Now()))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Record error = %v, want ErrNotConnected", err)
	}
}

func TestConnect_AfterDisconnect(t *testing.T) {
	c, err := NewClient(testConfig(), slog.Default())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	c.Disconnect()
	c.Disconnect()

	if err := c.Connect(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("Connect error = %v, want ErrStopped", err)
	}
}

func TestConnect_ContextDeadline(t *testing.T) {
	c, err := NewClient(testConfig(), slog.Default())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Disconnect()

	// Port 1 refuses; with ConnectRetry the token stays pending until ctx ends.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := c.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Connect error = %v, want context.DeadlineExceeded", err)
	}
}

func TestTelemetry_OmitsAbsentFields(t *testing.T) {
	temp := 23.0
	data, err := json.Marshal(Telemetry{StationID: "attic", Temperature: &temp})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["temperature_c"] != 23.0 {
		t.Errorf("temperature_c = %v, want 23", got["temperature_c"])
	}
	if _, ok := got["humidity_pct"]; ok {
		t.Error("humidity_pct present for absent humidity")
	}
}

func TestConnect_DisconnectWhileRetrying(t *testing.T) {
	c, err := NewClient(testConfig(), slog.Default())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	c.Disconnect()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("Connect error = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return after Disconnect")
	}
}
