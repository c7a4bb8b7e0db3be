package repository

import (
	"context"
	"errors"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
)

var (
	// ErrNoOpenEntry is returned by Exit when no car is waiting in the lane.
	ErrNoOpenEntry = errors.New("no car in drive-through to exit")
	// ErrEmptyPlate is returned by Enter for a blank plate.
	ErrEmptyPlate = errors.New("plate must not be empty")
)

const (
	DefaultRecentLimit = 100
	MaxRecentLimit     = 500
)

// ClampLimit bounds a list size to 1..MaxRecentLimit, using the default for zero.
func ClampLimit(limit int) int {
	if limit == 0 {
		return DefaultRecentLimit
	}
	return min(max(limit, 1), MaxRecentLimit)
}

// EntryRepository is the recording API: cars entering and leaving the lane.
type EntryRepository interface {
	// Enter opens a new entry for plate.
	Enter(ctx context.Context, plate string) (*model.CarEntry, error)
	// Exit closes the entry that has waited longest.
	Exit(ctx context.Context) (*model.CarEntry, error)

	// Pending lists open entries, oldest first.
	Pending(ctx context.Context) ([]model.CarEntry, error)
	// Recent lists the latest entries, newest first.
	Recent(ctx context.Context, limit int) ([]model.CarEntry, error)
}

// SightingRepository stores plate readings attached to saved snapshots.
type SightingRepository interface {
	// Create operations
	Insert(s *model.Sighting) (int64, error)
	InsertBatch(sightings []model.Sighting) error

	// Read operations
	GetByPlate(plate string) ([]model.Sighting, error)
	GetSince(since time.Time) ([]model.Sighting, error)

	// Delete operations
	DeleteOlderThan(before time.Time) (int64, error)
}
