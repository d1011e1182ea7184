package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dht-homekit/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// Open opens the reading history database at cfg.SQLitePath. At debug level
// every statement is logged through NewLoggingConnector.
func Open(cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	if !cfg.HistoryEnabled() {
		return nil, errors.New("db: SQLITE_PATH is not set")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn, err := buildDSN(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.LogLevel <= slog.LevelDebug {
		connector, err := NewLoggingConnector(dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("db connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(driverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	// One writer, one reading per update interval.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func buildDSN(path string) (string, error) {
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if path == ":memory:" {
		return "file::memory:?" + strings.Join(params[:1], "&"), nil
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
