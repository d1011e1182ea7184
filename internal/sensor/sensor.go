// Package sensor reads temperature and humidity from a DHT11/DHT22 on a
// GPIO pin, or from a dummy source on hosts without one.
package sensor

import (
	"context"
	"fmt"

	"dht-homekit/internal/config"
)

// Reader yields one Reading per call. A returned error wrapping
// ErrTransient means "try again later"; any other error is fatal.
type Reader interface {
	Read(ctx context.Context) (Reading, error)
}

// Open returns the Reader selected by cfg.SensorType.
func Open(cfg config.Config) (Reader, error) {
	switch cfg.SensorType {
	case "dht11", "dht22":
		return NewDHT(cfg.SensorPin, cfg.SensorType)
	case "dummy":
		return NewDummy(), nil
	default:
		return nil, fmt.Errorf("unknown sensor type %q", cfg.SensorType)
	}
}
