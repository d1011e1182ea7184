package sensor

import (
	"fmt"
	"time"
)

// Physical limits of the DHT family. Values outside them come from a
// corrupted frame that still passed the checksum and are dropped.
const (
	minTemperatureC = -40
	maxTemperatureC = 80
	minHumidityPct  = 0
	maxHumidityPct  = 100
)

// Reading is the result of one poll. Either field may be nil when the
// sensor produced no usable value for it this cycle.
type Reading struct {
	Temperature *float64
	Humidity    *float64
	Time        time.Time
}

// Complete reports whether both temperature and humidity are present.
func (r Reading) Complete() bool {
	return r.Temperature != nil && r.Humidity != nil
}

// Format renders a complete reading as a single human-readable line.
// It returns "" when either field is absent.
func Format(r Reading) string {
	if !r.Complete() {
		return ""
	}
	return fmt.Sprintf("Temperature: %g°C, Humidity: %g%%", *r.Temperature, *r.Humidity)
}

// NewReading builds a Reading, leaving out any value beyond the sensor's range.
func NewReading(temperature, humidity float64, ts time.Time) Reading {
	r := Reading{Time: ts}
	if temperature >= minTemperatureC && temperature <= maxTemperatureC {
		r.Temperature = &temperature
	}
	if humidity >= minHumidityPct && humidity <= maxHumidityPct {
		r.Humidity = &humidity
	}
	return r
}
