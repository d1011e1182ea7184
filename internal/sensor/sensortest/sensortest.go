// Package sensortest provides a scripted sensor.Reader for tests.
package sensortest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dht-homekit/internal/sensor"
)

// ErrExhausted is returned once every scripted step has been consumed.
var ErrExhausted = errors.New("sensortest: script exhausted")

// Step is one scripted Read result.
type Step struct {
	Reading sensor.Reading
	Err     error
}

// Ok scripts a reading; pass nil for an absent field.
func Ok(temperature, humidity *float64) Step {
	return Step{Reading: sensor.Reading{
		Temperature: temperature,
		Humidity:    humidity,
		Time:        time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}}
}

// Both scripts a complete reading.
func Both(temperature, humidity float64) Step {
	return Ok(&temperature, &humidity)
}

// Transient scripts a recoverable read failure with the given message.
func Transient(msg string) Step {
	return Step{Err: fmt.Errorf("%w: %s", sensor.ErrTransient, msg)}
}

// Fatal scripts an unrecoverable failure.
func Fatal(msg string) Step {
	return Step{Err: errors.New(msg)}
}

// Reader replays Steps in order. After the last step it calls OnExhausted
// (if set) and returns ErrExhausted.
type Reader struct {
	mu          sync.Mutex
	steps       []Step
	calls       int
	OnExhausted func()
}

func NewReader(steps ...Step) *Reader {
	return &Reader{steps: steps}
}

func (r *Reader) Read(ctx context.Context) (sensor.Reading, error) {
	r.mu.Lock()
	if r.calls >= len(r.steps) {
		r.calls++
		hook := r.OnExhausted
		r.mu.Unlock()
		if hook != nil {
			hook()
		}
		if err := ctx.Err(); err != nil {
			return sensor.Reading{}, err
		}
		return sensor.Reading{}, ErrExhausted
	}
	s := r.steps[r.calls]
	r.calls++
	r.mu.Unlock()
	return s.Reading, s.Err
}

// Calls returns how many times Read was invoked.
func (r *Reader) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// F returns a pointer to v, for scripting optional fields.
func F(v float64) *float64 { return &v }
