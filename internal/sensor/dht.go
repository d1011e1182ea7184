package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MichaelS11/go-dht"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// device is the part of *dht.DHT the reader uses: humidity, temperature.
type device interface {
	Read() (float64, float64, error)
}

// DHT reads a DHT11 or DHT22 over the single-wire protocol.
type DHT struct {
	dev   device
	pin   string
	model string
}

func NewDHT(pin string, model string) (*DHT, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	if gpioreg.ByName(pin) == nil {
		return nil, fmt.Errorf("gpio pin %q not found", pin)
	}

	dev, err := dht.NewDHT(pin, dht.Celsius, model)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", model, pin, err)
	}

	slog.Info("sensor opened", "model", model, "pin", pin)
	return &DHT{dev: dev, pin: pin, model: model}, nil
}

func (d *DHT) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	// The driver itself paces reads to the sensor's 2s minimum.
	humidity, temperature, err := d.dev.Read()
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %s on %s: %v", ErrTransient, d.model, d.pin, err)
	}

	r := NewReading(temperature, humidity, time.Now())
	if !r.Complete() {
		slog.Debug("sensor value out of range",
			"model", d.model,
			"temperature", temperature,
			"humidity", humidity,
		)
	}
	return r, nil
}
