package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository"
)

var (
	_ repository.EntryRepository    = (*EntryRepository)(nil)
	_ repository.SightingRepository = (*SightingRepository)(nil)
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// steppingClock returns times one minute apart starting at start.
func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(time.Minute)
		return t
	}
}

func TestEntryRepository_EnterExitFIFO(t *testing.T) {
	ctx := context.Background()
	repo := NewEntryRepository(setupDB(t))
	repo.now = steppingClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	first, err := repo.Enter(ctx, "AB12CD")
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if _, err := repo.Enter(ctx, "XY34ZW"); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	pending, err := repo.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 || pending[0].Plate != "AB12CD" || pending[1].Plate != "XY34ZW" {
		t.Fatalf("pending = %+v", pending)
	}

	exited, err := repo.Exit(ctx)
	if err != nil {
		t.Fatalf("Exit: %v", err)
	}
	if exited.ID != first.ID || exited.Open() {
		t.Errorf("exited = %+v, want first entry closed", exited)
	}
	// Entered at 12:00, exited at 12:02.
	if exited.MinutesElapsed.Float64 != 2 || exited.CarbonProduced.Float64 != 54 {
		t.Errorf("derived = %v / %v", exited.MinutesElapsed, exited.CarbonProduced)
	}

	pending, _ = repo.Pending(ctx)
	if len(pending) != 1 || pending[0].Plate != "XY34ZW" {
		t.Errorf("pending after exit = %+v", pending)
	}

	if _, err := repo.Exit(ctx); err != nil {
		t.Fatalf("second Exit: %v", err)
	}
	if _, err := repo.Exit(ctx); !errors.Is(err, repository.ErrNoOpenEntry) {
		t.Errorf("Exit on empty lane = %v, want ErrNoOpenEntry", err)
	}
}

func TestEntryRepository_Recent(t *testing.T) {
	ctx := context.Background()
	repo := NewEntryRepository(setupDB(t))
	repo.now = steppingClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	for _, plate := range []string{"AAA111", "BBB222", "CCC333"} {
		if _, err := repo.Enter(ctx, plate); err != nil {
			t.Fatalf("Enter: %v", err)
		}
	}

	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Plate != "CCC333" || recent[1].Plate != "BBB222" {
		t.Errorf("recent = %+v", recent)
	}

	all, _ := repo.Recent(ctx, -5)
	if len(all) != 1 {
		t.Errorf("negative limit should clamp to 1, got %d", len(all))
	}
}

func TestEntryRepository_RejectsEmptyPlate(t *testing.T) {
	repo := NewEntryRepository(setupDB(t))
	if _, err := repo.Enter(context.Background(), "  "); !errors.Is(err, repository.ErrEmptyPlate) {
		t.Errorf("err = %v, want ErrEmptyPlate", err)
	}
}

func TestSightingRepository(t *testing.T) {
	repo := NewSightingRepository(setupDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	id, err := repo.Insert(&model.Sighting{Plate: "AB12CD", Camera: "gate", Label: "car", Confidence: 0.9, Filename: "a.jpg", Timestamp: base})
	if err != nil || id == 0 {
		t.Fatalf("Insert: id=%d err=%v", id, err)
	}

	batch := []model.Sighting{
		{Plate: "AB12CD", Camera: "exit", Label: "car", Confidence: 0.8, Filename: "b.jpg", Timestamp: base.Add(time.Hour)},
		{Plate: "ZZ99", Camera: "gate", Label: "truck", Confidence: 0.7, Filename: "c.jpg", Timestamp: base.Add(2 * time.Hour)},
	}
	if err := repo.InsertBatch(batch); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	byPlate, err := repo.GetByPlate("AB12CD")
	if err != nil {
		t.Fatalf("GetByPlate: %v", err)
	}
	if len(byPlate) != 2 || byPlate[0].Camera != "exit" {
		t.Errorf("by plate = %+v", byPlate)
	}

	since, _ := repo.GetSince(base.Add(30 * time.Minute))
	if len(since) != 2 {
		t.Errorf("since = %d rows, want 2", len(since))
	}

	deleted, err := repo.DeleteOlderThan(base.Add(90 * time.Minute))
	if err != nil || deleted != 2 {
		t.Errorf("DeleteOlderThan = %d, %v; want 2", deleted, err)
	}
}
