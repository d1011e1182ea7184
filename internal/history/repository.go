// Package history persists bridge readings in SQLite.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"dht-homekit/internal/sensor"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-latest-readings.sql
var getLatestReadingsSQL string

//go:embed sql/get-readings-count.sql
var getReadingsCountSQL string

// Entry is a stored reading. Absent fields were NULL in the row.
type Entry struct {
	StationID   string
	Time        time.Time
	Temperature *float64
	Humidity    *float64
}

type Repository struct {
	db        *sql.DB
	stationID string
}

func NewRepository(db *sql.DB, stationID string) *Repository {
	return &Repository{db: db, stationID: stationID}
}

// Record implements bridge.Recorder.
func (r *Repository) Record(ctx context.Context, rd sensor.Reading) error {
	ts := rd.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		r.stationID,
		stamp(ts),
		nullable(rd.Temperature),
		nullable(rd.Humidity),
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// Latest returns up to limit entries, newest first.
func (r *Repository) Latest(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, getLatestReadingsSQL, r.stationID, limit)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "latest readings")
	return scanEntries(rows)
}

// Count returns the number of entries in [from, to).
func (r *Repository) Count(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, getReadingsCountSQL, r.stationID, stamp(from), stamp(to)).Scan(&n)
	return n, err
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			ts   string
			temp sql.NullFloat64
			hum  sql.NullFloat64
		)
		if err := rows.Scan(&e.StationID, &ts, &temp, &hum); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		e.Time = t
		if temp.Valid {
			e.Temperature = &temp.Float64
		}
		if hum.Valid {
			e.Humidity = &hum.Float64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Error("close "+what+" rows", "error", err)
	}
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Fixed-width UTC timestamps sort lexically in time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func stamp(t time.Time) string {
	return t.UTC().Format(tsLayout)
}
