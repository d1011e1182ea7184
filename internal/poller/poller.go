// Package poller prints sensor readings on a fixed interval.
package poller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"dht-homekit/internal/sensor"
)

type Poller struct {
	reader   sensor.Reader
	out      io.Writer
	interval time.Duration
	logger   *slog.Logger
	cycles   atomic.Int64
}

func New(reader sensor.Reader, out io.Writer, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		reader:   reader,
		out:      out,
		interval: interval,
		logger:   logger,
	}
}

// Run polls immediately and then once per interval until ctx is done or a
// fatal sensor error occurs. Transient errors are logged and skipped.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll performs a single read and prints it when both values are present.
func (p *Poller) Poll(ctx context.Context) error {
	p.cycles.Add(1)

	r, err := p.reader.Read(ctx)
	switch sensor.Classify(err) {
	case sensor.Transient:
		p.logger.Error("sensor read error", "error", err)
		return nil
	case sensor.Fatal:
		return fmt.Errorf("read sensor: %w", err)
	}

	if !r.Complete() {
		p.logger.Debug("incomplete reading skipped",
			"has_temperature", r.Temperature != nil,
			"has_humidity", r.Humidity != nil,
		)
		return nil
	}

	if _, err := fmt.Fprintln(p.out, sensor.Format(r)); err != nil {
		return fmt.Errorf("write reading: %w", err)
	}
	return nil
}

// Cycles returns the number of polls attempted so far.
func (p *Poller) Cycles() int64 {
	return p.cycles.Load()
}
