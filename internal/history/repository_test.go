package history

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dht-homekit/internal/migrate"
	"dht-homekit/internal/sensor"
)

var base = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	if _, err := migrate.Run(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func record(t *testing.T, repo *Repository, readings ...sensor.Reading) {
	t.Helper()
	for _, r := range readings {
		if err := repo.Record(context.Background(), r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
}

func TestLatest_Empty(t *testing.T) {
	repo := NewRepository(setupTestDB(t), "home")

	got, err := repo.Latest(context.Background(), 10)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Latest: got %d entries, want 0", len(got))
	}
}

func TestRecord_ThenLatest_NewestFirst(t *testing.T) {
	repo := NewRepository(setupTestDB(t), "home")
	record(t, repo,
		sensor.NewReading(20, 40, base),
		sensor.NewReading(21, 41, base.Add(time.Minute)),
		sensor.NewReading(22, 42, base.Add(2*time.Minute)),
	)

	got, err := repo.Latest(context.Background(), 2)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Latest(limit=2): got %d entries, want 2", len(got))
	}
	if *got[0].Temperature != 22 || *got[1].Temperature != 21 {
		t.Errorf("order: got %v, %v, want 22, 21", *got[0].Temperature, *got[1].Temperature)
	}
	if !got[0].Time.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("time = %v, want %v", got[0].Time, base.Add(2*time.Minute))
	}
	if got[0].StationID != "home" {
		t.Errorf("station = %q, want home", got[0].StationID)
	}
}

func TestRecord_AbsentFieldsStoredAsNull(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, "home")

	temp := 23.0
	record(t, repo, sensor.Reading{Temperature: &temp, Time: base})

	var nulls int
	if err := db.QueryRow(`SELECT COUNT(*) FROM readings WHERE humidity_pct IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("count nulls: %v", err)
	}
	if nulls != 1 {
		t.Fatalf("rows with NULL humidity = %d, want 1", nulls)
	}

	got, err := repo.Latest(context.Background(), 1)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got[0].Humidity != nil {
		t.Errorf("Humidity = %v, want nil", *got[0].Humidity)
	}
	if got[0].Temperature == nil || *got[0].Temperature != 23 {
		t.Errorf("Temperature = %v, want 23", got[0].Temperature)
	}
}

func TestRecord_StationsAreSeparate(t *testing.T) {
	db := setupTestDB(t)
	record(t, NewRepository(db, "attic"), sensor.NewReading(30, 20, base))

	got, err := NewRepository(db, "home").Latest(context.Background(), 10)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("home sees %d attic entries, want 0", len(got))
	}
}

func TestCount_HalfOpenWindow(t *testing.T) {
	repo := NewRepository(setupTestDB(t), "home")
	for i := range 5 {
		record(t, repo, sensor.NewReading(float64(10+i), 50, base.Add(time.Duration(i)*time.Hour)))
	}
	// Sub-second stamps must still sort inside the window.
	record(t, repo, sensor.NewReading(30, 50, base.Add(90*time.Minute+500*time.Millisecond)))

	from, to := base.Add(time.Hour), base.Add(4*time.Hour)
	n, err := repo.Count(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Errorf("Count = %d, want 4", n)
	}
}

func TestRecord_CancelledContext(t *testing.T) {
	repo := NewRepository(setupTestDB(t), "home")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := repo.Record(ctx, sensor.NewReading(20, 40, base)); err == nil {
		t.Fatal("Record with cancelled context: error = nil")
	}
}
