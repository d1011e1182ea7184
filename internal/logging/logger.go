package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"dht-homekit/internal/config"
)

func New(cfg config.Config, version string, appName string) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg, version, appName)
}

// NewWithWriter builds the process logger on w. Dev builds get tint's
// human-readable output, colour only when w is a terminal; anything else
// logs JSON.
func NewWithWriter(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  cfg.LogLevel <= slog.LevelDebug,
			TimeFormat: time.DateTime,
			NoColor:    !isTerminal(w),
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
