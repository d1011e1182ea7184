package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	SensorType     string
	SensorPin      string
	PollInterval   time.Duration
	UpdateInterval time.Duration

	HAPPort          int
	HAPPairingCode   string
	HAPAccessoryName string
	// HAPStoreDir holds the pairing keys and accessory ids between restarts.
	HAPStoreDir string
	QRCodePath  string
	QRCodeSize  int

	// MQTTBroker left empty disables the telemetry mirror.
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	DeviceStationID string

	// SQLitePath left empty disables the reading history.
	SQLitePath string
}

// MQTTEnabled reports whether readings should be mirrored to a broker.
func (c Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

// HistoryEnabled reports whether readings should be stored in sqlite.
func (c Config) HistoryEnabled() bool { return c.SQLitePath != "" }

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	sensorType := strings.ToLower(env("SENSOR_TYPE", "dht11"))
	switch sensorType {
	case "dht11", "dht22", "dummy":
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_TYPE %q (allowed: dht11, dht22, dummy)", sensorType)
	}

	sensorPin := env("SENSOR_PIN", "GPIO4")

	pollInterval, err := positiveDuration("POLL_INTERVAL", "2s")
	if err != nil {
		return Config{}, err
	}
	updateInterval, err := positiveDuration("UPDATE_INTERVAL", "60s")
	if err != nil {
		return Config{}, err
	}

	hapPort, err := port("HAP_PORT", "51826")
	if err != nil {
		return Config{}, err
	}

	qrSizeStr := env("QR_CODE_SIZE", "256")
	qrSize, err := strconv.Atoi(qrSizeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid QR_CODE_SIZE %q: %w", qrSizeStr, err)
	}
	if qrSize <= 0 {
		return Config{}, fmt.Errorf("QR_CODE_SIZE must be positive, got %d", qrSize)
	}

	mqttPort, err := port("MQTT_PORT", "1883")
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:           appEnv,
		LogLevel:         level,
		SensorType:       sensorType,
		SensorPin:        sensorPin,
		PollInterval:     pollInterval,
		UpdateInterval:   updateInterval,
		HAPPort:          hapPort,
		HAPPairingCode:   env("HAP_PAIRING_CODE", "031-45-154"),
		HAPAccessoryName: env("HAP_ACCESSORY_NAME", "Room Sensor"),
		HAPStoreDir:      env("HAP_STORE_DIR", "hapdb"),
		QRCodePath:       env("QR_CODE_PATH", "homekit_qr_code.png"),
		QRCodeSize:       qrSize,
		MQTTBroker:       strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTPort:         mqttPort,
		MQTTClientID:     env("MQTT_CLIENT_ID", "dht-homekit"),
		DeviceStationID:  env("DEVICE_STATION_ID", "home"),
		SQLitePath:       strings.TrimSpace(os.Getenv("SQLITE_PATH")),
	}, nil
}

// env returns the trimmed value of key, or def when it is unset or blank.
func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func positiveDuration(key, def string) (time.Duration, error) {
	s := env(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func port(key, def string) (int, error) {
	s := env(key, def)
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("%s out of range: %d", key, p)
	}
	return p, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
