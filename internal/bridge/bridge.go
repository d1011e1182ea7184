// Package bridge runs the sensor to HomeKit update loop and owns the
// accessory driver's lifecycle.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"dht-homekit/internal/pairing"
	"dht-homekit/internal/sensor"
)

const (
	defaultInterval = 60 * time.Second
	defaultQRSize   = 256
)

var ErrAlreadyRun = errors.New("bridge: already run")

// Sink receives the latest values, one call per characteristic.
type Sink interface {
	SetTemperature(celsius float64)
	SetHumidity(pct float64)
}

// Driver serves the accessory to pairing clients. Start blocks until ctx is
// done; Stop must not return before Start has.
type Driver interface {
	Start(ctx context.Context) error
	Stop()
}

// Recorder receives every successful reading, complete or not.
type Recorder interface {
	Record(ctx context.Context, r sensor.Reading) error
}

// SetupFunc builds the accessory, registers it with a driver bound to code
// and returns both.
type SetupFunc func(code pairing.Code) (Driver, Sink, error)

type Options struct {
	Reader   sensor.Reader
	Code     pairing.Code
	Setup    SetupFunc
	Interval time.Duration

	QRPath string
	QRSize int
	// Display, when set, receives a text rendering of the pairing QR code.
	Display io.Writer

	Recorders []Recorder
	Logger    *slog.Logger
}

type Bridge struct {
	opts   Options
	logger *slog.Logger
	state  atomic.Int32
	ran    atomic.Bool
}

func New(opts Options) *Bridge {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.QRSize <= 0 {
		opts.QRSize = defaultQRSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Bridge{opts: opts, logger: opts.Logger}
}

func (b *Bridge) State() State {
	return State(b.state.Load())
}

func (b *Bridge) setState(s State) {
	prev := State(b.state.Swap(int32(s)))
	if prev != s {
		b.logger.Debug("bridge state", "from", prev, "to", s)
	}
}

// Run performs startup, then serves and updates the accessory until ctx is
// cancelled or a fatal error occurs. Cancellation is a clean shutdown and
// returns nil. A Bridge runs at most once.
func (b *Bridge) Run(ctx context.Context) (err error) {
	if !b.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	defer b.setState(StateStopped)

	b.setState(StateStarting)
	b.logger.Info("starting homekit accessory server")
	b.logger.Info("homekit pairing code", "code", b.opts.Code.String())

	if err := b.publishPairing(); err != nil {
		return err
	}
	b.setState(StatePairingReady)

	driver, sink, err := b.opts.Setup(b.opts.Code)
	if err != nil {
		return fmt.Errorf("accessory setup: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.setState(StateRunning)
	b.logger.Info("starting the accessory driver")

	driverErr := make(chan error, 1)
	go func() { driverErr <- driver.Start(runCtx) }()

	loopErr := make(chan error, 1)
	go func() { loopErr <- b.updateLoop(runCtx, sink) }()

	loopDone, driverDone := false, false
	select {
	case <-ctx.Done():
		b.logger.Info("interrupt received")
	case err = <-driverErr:
		driverDone = true
		if err == nil {
			err = errors.New("accessory driver exited")
		}
	case err = <-loopErr:
		loopDone = true
	}

	// The update loop must be gone before the driver stops so nothing is
	// pushed into a stopped accessory.
	cancel()
	if !loopDone {
		if lerr := <-loopErr; err == nil {
			err = lerr
		}
	}
	driver.Stop()
	if !driverDone {
		<-driverErr
	}
	b.setState(StateStopped)
	b.logger.Info("accessory driver stopped")

	return err
}

func (b *Bridge) publishPairing() error {
	code := b.opts.Code
	if err := pairing.WriteQR(code, b.opts.QRPath, b.opts.QRSize); err != nil {
		return err
	}

	if b.opts.Display != nil {
		art, err := pairing.Terminal(code)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(b.opts.Display, art); err != nil {
			return fmt.Errorf("display qr code: %w", err)
		}
	}

	b.logger.Info("qr code for homekit pairing saved", "path", b.opts.QRPath, "uri", code.URI())
	return nil
}

func (b *Bridge) updateLoop(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(b.opts.Interval)
	defer ticker.Stop()

	for {
		if err := b.update(ctx, sink); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// update runs one cycle: read, record, and push complete readings to sink.
func (b *Bridge) update(ctx context.Context, sink Sink) error {
	b.logger.Info("updating sensor data")

	r, err := b.opts.Reader.Read(ctx)
	switch sensor.Classify(err) {
	case sensor.Transient:
		b.logger.Error("sensor read error", "error", err)
		return nil
	case sensor.Fatal:
		return fmt.Errorf("read sensor: %w", err)
	}

	b.record(ctx, r)

	if !r.Complete() {
		b.logger.Warn("temperature or humidity reading is missing",
			"has_temperature", r.Temperature != nil,
			"has_humidity", r.Humidity != nil,
		)
		return nil
	}

	b.logger.Info(sensor.Format(r))
	sink.SetTemperature(*r.Temperature)
	sink.SetHumidity(*r.Humidity)
	return nil
}

func (b *Bridge) record(ctx context.Context, r sensor.Reading) {
	for _, rec := range b.opts.Recorders {
		if err := rec.Record(ctx, r); err != nil {
			b.logger.Warn("failed to record reading", "recorder", fmt.Sprintf("%T", rec), "error", err)
		}
	}
}
