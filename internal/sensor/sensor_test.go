package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"dht-homekit/internal/config"
)

func TestNewReading_Range(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name         string
		temp, hum    float64
		wantTemp     bool
		wantHum      bool
		wantComplete bool
	}{
		{name: "typical", temp: 22, hum: 55, wantTemp: true, wantHum: true, wantComplete: true},
		{name: "bounds inclusive", temp: -40, hum: 100, wantTemp: true, wantHum: true, wantComplete: true},
		{name: "humidity overflow", temp: 23, hum: 255, wantTemp: true},
		{name: "temperature overflow", temp: 120, hum: 40, wantHum: true},
		{name: "both garbage", temp: -100, hum: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReading(tt.temp, tt.hum, ts)
			if (r.Temperature != nil) != tt.wantTemp {
				t.Errorf("Temperature present = %v, want %v", r.Temperature != nil, tt.wantTemp)
			}
			if (r.Humidity != nil) != tt.wantHum {
				t.Errorf("Humidity present = %v, want %v", r.Humidity != nil, tt.wantHum)
			}
			if r.Complete() != tt.wantComplete {
				t.Errorf("Complete() = %v, want %v", r.Complete(), tt.wantComplete)
			}
			if !r.Time.Equal(ts) {
				t.Errorf("Time = %v, want %v", r.Time, ts)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		r    Reading
		want string
	}{
		{name: "whole numbers", r: NewReading(22, 55, time.Time{}), want: "Temperature: 22°C, Humidity: 55%"},
		{name: "fractional", r: NewReading(23.4, 41.5, time.Time{}), want: "Temperature: 23.4°C, Humidity: 41.5%"},
		{name: "humidity absent", r: NewReading(23, 300, time.Time{}), want: ""},
		{name: "empty", r: Reading{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.r); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{name: "nil", err: nil, want: OK},
		{name: "sentinel", err: ErrTransient, want: Transient},
		{name: "wrapped", err: fmt.Errorf("%w: checksum mismatch", ErrTransient), want: Transient},
		{name: "double wrapped", err: fmt.Errorf("poll: %w", fmt.Errorf("%w: timeout", ErrTransient)), want: Transient},
		{name: "other", err: errors.New("gpio pin not found"), want: Fatal},
		{name: "canceled", err: context.Canceled, want: Fatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDummy_Read(t *testing.T) {
	d := NewDummy()
	for i := 0; i < 50; i++ {
		r, err := d.Read(context.Background())
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !r.Complete() {
			t.Fatalf("reading %d incomplete: %+v", i, r)
		}
		if *r.Temperature < 20 || *r.Temperature > 25 {
			t.Errorf("temperature %v outside 20..25", *r.Temperature)
		}
		if *r.Humidity < 40 || *r.Humidity > 60 {
			t.Errorf("humidity %v outside 40..60", *r.Humidity)
		}
	}
}

func TestDummy_ReadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDummy().Read(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Read error = %v, want context.Canceled", err)
	}
}

func TestOpen(t *testing.T) {
	r, err := Open(config.Config{SensorType: "dummy"})
	if err != nil {
		t.Fatalf("Open(dummy): %v", err)
	}
	if _, ok := r.(*Dummy); !ok {
		t.Errorf("Open(dummy) = %T, want *Dummy", r)
	}

	if _, err := Open(config.Config{SensorType: "sht31"}); err == nil {
		t.Error("Open(sht31) error = nil, want non-nil")
	}
}

type stubDevice struct {
	humidity, temperature float64
	err                   error
}

func (d stubDevice) Read() (float64, float64, error) {
	return d.humidity, d.temperature, d.err
}

func TestDHT_Read(t *testing.T) {
	tests := []struct {
		name         string
		dev          stubDevice
		want         Outcome
		wantTemp     bool
		wantHum      bool
		wantComplete bool
	}{
		{name: "in range", dev: stubDevice{humidity: 55, temperature: 22}, want: OK, wantTemp: true, wantHum: true, wantComplete: true},
		{name: "checksum error", dev: stubDevice{err: errors.New("checksum error")}, want: Transient},
		{name: "humidity overflow", dev: stubDevice{humidity: 255, temperature: 22}, want: OK, wantTemp: true},
		{name: "temperature overflow", dev: stubDevice{humidity: 40, temperature: 255}, want: OK, wantHum: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &DHT{dev: tt.dev, pin: "GPIO4", model: "dht22"}

			r, err := d.Read(context.Background())
			if got := Classify(err); got != tt.want {
				t.Fatalf("Classify(%v) = %v, want %v", err, got, tt.want)
			}
			if err != nil {
				if !strings.Contains(err.Error(), "GPIO4") {
					t.Errorf("error %q does not name the pin", err)
				}
				return
			}
			if (r.Temperature != nil) != tt.wantTemp {
				t.Errorf("Temperature present = %v, want %v", r.Temperature != nil, tt.wantTemp)
			}
			if (r.Humidity != nil) != tt.wantHum {
				t.Errorf("Humidity present = %v, want %v", r.Humidity != nil, tt.wantHum)
			}
			if r.Complete() != tt.wantComplete {
				t.Errorf("Complete() = %v, want %v", r.Complete(), tt.wantComplete)
			}
			if r.Time.IsZero() {
				t.Error("Time not set")
			}
		})
	}
}

func TestDHT_ReadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &DHT{dev: stubDevice{humidity: 55, temperature: 22}, pin: "GPIO4", model: "dht11"}
	if _, err := d.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Read error = %v, want context.Canceled", err)
	}
}
