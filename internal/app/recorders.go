package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dht-homekit/internal/bridge"
	"dht-homekit/internal/config"
	"dht-homekit/internal/db"
	"dht-homekit/internal/history"
	"dht-homekit/internal/migrate"
	"dht-homekit/internal/mqtt"
)

// openRecorders sets up the optional MQTT mirror and SQLite history. The
// returned func releases whatever was opened.
func openRecorders(ctx context.Context, cfg config.Config) ([]bridge.Recorder, func(), error) {
	var (
		recorders []bridge.Recorder
		closers   []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.HistoryEnabled() {
		repo, closeDB, err := openHistory(ctx, cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, closeDB)
		recorders = append(recorders, repo)
	}

	if cfg.MQTTEnabled() {
		client, err := mqtt.NewClient(cfg, slog.Default())
		if err != nil {
			closeAll()
			return nil, nil, err
		}

		// Readings recorded before the broker answers are dropped with a warning.
		go func() {
			if err := client.Connect(ctx); err != nil && !shutdownErr(err) {
				slog.Error("mqtt connect failed", "error", err)
			}
		}()
		closers = append(closers, client.Disconnect)
		recorders = append(recorders, client)
	}

	return recorders, closeAll, nil
}

// shutdownErr reports whether a connect error only means the process is
// stopping.
func shutdownErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, mqtt.ErrStopped)
}

func openHistory(ctx context.Context, cfg config.Config) (*history.Repository, func(), error) {
	conn, err := db.Open(cfg, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(conn); err != nil {
			slog.Error("db close", "error", err)
		}
	}

	if _, err := migrate.Run(ctx, conn, slog.Default()); err != nil {
		closeDB()
		return nil, nil, err
	}

	repo := history.NewRepository(conn, cfg.DeviceStationID)

	attrs := []any{"path", cfg.SQLitePath}
	if latest, err := repo.Latest(ctx, 1); err != nil {
		slog.Warn("read last recorded reading", "error", err)
	} else if len(latest) == 1 {
		attrs = append(attrs, "last_recorded", latest[0].Time)
	}
	now := time.Now()
	if n, err := repo.Count(ctx, now.Add(-24*time.Hour), now); err != nil {
		slog.Warn("count recent readings", "error", err)
	} else {
		attrs = append(attrs, "last_24h", n)
	}
	slog.Info("history opened", attrs...)

	return repo, closeDB, nil
}
