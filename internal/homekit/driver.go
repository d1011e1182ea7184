// Package homekit publishes sensor values as a HomeKit accessory.
package homekit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	haplog "github.com/brutella/hap/log"

	"dht-homekit/internal/pairing"
)

var (
	ErrNoAccessory = errors.New("homekit: no accessory registered")
	ErrStopped     = errors.New("homekit: driver stopped")
)

// Driver owns the HAP server: pairing, mDNS announcement and the
// characteristic event stream are all handled by it.
type Driver struct {
	port   int
	code   pairing.Code
	store  hap.Store
	logger *slog.Logger

	mu          sync.Mutex
	accessories []*accessory.A
	cancel      context.CancelFunc
	done        chan struct{}
	stopped     bool
}

func NewDriver(port int, code pairing.Code, storeDir string, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		haplog.Debug.Enable()
	}
	return &Driver{
		port:   port,
		code:   code,
		store:  hap.NewFsStore(storeDir),
		logger: logger,
	}
}

// AddAccessory registers a. The first accessory added is the primary one.
func (d *Driver) AddAccessory(a *Accessory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accessories = append(d.accessories, a.A)
	d.logger.Info("added accessory", "name", a.Info.Name.Value(), "services", len(a.Ss))
}

// Start runs the HAP server and blocks until ctx is done or Stop is called.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrStopped
	}
	if len(d.accessories) == 0 {
		d.mu.Unlock()
		return ErrNoAccessory
	}
	if d.done != nil {
		d.mu.Unlock()
		return errors.New("homekit: driver already started")
	}

	server, err := hap.NewServer(d.store, d.accessories[0], d.accessories[1:]...)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("hap server: %w", err)
	}
	server.Pin = d.code.Pin()
	server.Addr = fmt.Sprintf(":%d", d.port)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	d.mu.Unlock()

	defer close(done)

	d.logger.Info("accessory driver listening", "port", d.port)
	err = server.ListenAndServe(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("hap listen: %w", err)
	}
	return nil
}

// Stop shuts the server down and waits for Start to return. Safe to call
// more than once and before Start.
func (d *Driver) Stop() {
	d.mu.Lock()
	d.stopped = true
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
