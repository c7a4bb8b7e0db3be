package sqlite

import (
	"fmt"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
)

// SightingRepository implements repository.SightingRepository for SQLite.
type SightingRepository struct {
	db *DB
}

// NewSightingRepository creates a new SQLite sighting repository.
func NewSightingRepository(db *DB) *SightingRepository {
	return &SightingRepository{db: db}
}

const insertSighting = `
	INSERT INTO plate_sightings (plate, camera, label, confidence, filename, timestamp)
	VALUES (?, ?, ?, ?, ?, ?)
`

// Insert adds a new sighting record to the database.
func (r *SightingRepository) Insert(s *model.Sighting) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertSighting, s.Plate, s.Camera, s.Label, s.Confidence, s.Filename, s.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sighting: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple sightings in a single transaction.
func (r *SightingRepository) InsertBatch(sightings []model.Sighting) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertSighting)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range sightings {
		if _, err := stmt.Exec(s.Plate, s.Camera, s.Label, s.Confidence, s.Filename, s.Timestamp); err != nil {
			return fmt.Errorf("failed to insert sighting: %w", err)
		}
	}

	return tx.Commit()
}

// GetByPlate retrieves all sightings of a plate, newest first.
func (r *SightingRepository) GetByPlate(plate string) ([]model.Sighting, error) {
	return r.query(`
		SELECT id, plate, camera, label, confidence, filename, timestamp
		FROM plate_sightings WHERE plate = ? ORDER BY timestamp DESC
	`, plate)
}

// GetSince retrieves sightings at or after since, oldest first.
func (r *SightingRepository) GetSince(since time.Time) ([]model.Sighting, error) {
	return r.query(`
		SELECT id, plate, camera, label, confidence, filename, timestamp
		FROM plate_sightings WHERE timestamp >= ? ORDER BY timestamp ASC
	`, since)
}

// DeleteOlderThan removes sightings recorded before the cutoff.
func (r *SightingRepository) DeleteOlderThan(before time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM plate_sightings WHERE timestamp < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sightings: %w", err)
	}
	return result.RowsAffected()
}

func (r *SightingRepository) query(query string, args ...interface{}) ([]model.Sighting, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var sightings []model.Sighting
	for rows.Next() {
		var s model.Sighting
		if err := rows.Scan(&s.ID, &s.Plate, &s.Camera, &s.Label, &s.Confidence, &s.Filename, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		sightings = append(sightings, s)
	}

	return sightings, rows.Err()
}
