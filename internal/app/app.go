package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/brutella/hap/accessory"

	"dht-homekit/internal/bridge"
	"dht-homekit/internal/config"
	"dht-homekit/internal/homekit"
	"dht-homekit/internal/pairing"
	"dht-homekit/internal/poller"
	"dht-homekit/internal/sensor"
)

// RunPoller prints readings to stdout until ctx is done.
func RunPoller(ctx context.Context, cfg config.Config) error {
	slog.Info("initializing poller",
		"sensor_type", cfg.SensorType,
		"sensor_pin", cfg.SensorPin,
		"interval", cfg.PollInterval,
	)

	reader, err := sensor.Open(cfg)
	if err != nil {
		return err
	}

	return poller.New(reader, os.Stdout, cfg.PollInterval, slog.Default()).Run(ctx)
}

// RunBridge serves the sensor as a HomeKit accessory until ctx is done.
func RunBridge(ctx context.Context, cfg config.Config) error {
	return runBridge(ctx, cfg, os.Stdout)
}

func runBridge(ctx context.Context, cfg config.Config, display io.Writer) error {
	slog.Info("initializing bridge",
		"sensor_type", cfg.SensorType,
		"sensor_pin", cfg.SensorPin,
		"interval", cfg.UpdateInterval,
		"hap_port", cfg.HAPPort,
		"accessory", cfg.HAPAccessoryName,
		"mqtt_enabled", cfg.MQTTEnabled(),
		"history_enabled", cfg.HistoryEnabled(),
	)

	code, err := pairing.ParseCode(cfg.HAPPairingCode)
	if err != nil {
		return err
	}

	reader, err := sensor.Open(cfg)
	if err != nil {
		return err
	}

	recorders, closeRecorders, err := openRecorders(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRecorders()

	b := bridge.New(bridge.Options{
		Reader:    reader,
		Code:      code,
		Setup:     homekitSetup(cfg),
		Interval:  cfg.UpdateInterval,
		QRPath:    cfg.QRCodePath,
		QRSize:    cfg.QRCodeSize,
		Display:   display,
		Recorders: recorders,
		Logger:    slog.Default(),
	})

	return b.Run(ctx)
}

func homekitSetup(cfg config.Config) bridge.SetupFunc {
	return func(code pairing.Code) (bridge.Driver, bridge.Sink, error) {
		acc := homekit.NewAccessory(accessory.Info{
			Name:         cfg.HAPAccessoryName,
			Manufacturer: "dht-homekit",
			Model:        strings.ToUpper(cfg.SensorType),
			SerialNumber: cfg.DeviceStationID,
		})

		driver := homekit.NewDriver(cfg.HAPPort, code, cfg.HAPStoreDir, slog.Default())
		driver.AddAccessory(acc)
		return driver, acc, nil
	}
}
