package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository"
	"gopkg.in/guregu/null.v4"
)

// EntryRepository implements repository.EntryRepository for SQLite.
type EntryRepository struct {
	db  *DB
	now func() time.Time
}

// NewEntryRepository creates a new SQLite entry repository.
func NewEntryRepository(db *DB) *EntryRepository {
	return &EntryRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Enter opens a new entry stamped with the current time.
func (r *EntryRepository) Enter(ctx context.Context, plate string) (*model.CarEntry, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return nil, repository.ErrEmptyPlate
	}

	r.db.Lock()
	defer r.db.Unlock()

	entry := &model.CarEntry{Plate: plate, EnteredAt: r.now()}
	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO car_entries (numberplate, enter_timestamp, exit_timestamp)
		VALUES (?, ?, NULL)
	`, entry.Plate, entry.EnteredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert entry: %w", err)
	}

	if entry.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read entry id: %w", err)
	}
	return entry, nil
}

// Exit stamps the exit time on the longest-waiting open entry.
func (r *EntryRepository) Exit(ctx context.Context) (*model.CarEntry, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var entry model.CarEntry
	err = tx.QueryRowContext(ctx, `
		SELECT entry_id, numberplate, enter_timestamp
		FROM car_entries
		WHERE exit_timestamp IS NULL
		ORDER BY enter_timestamp ASC, entry_id ASC
		LIMIT 1
	`).Scan(&entry.ID, &entry.Plate, &entry.EnteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNoOpenEntry
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open entry: %w", err)
	}

	entry.ExitedAt = null.TimeFrom(r.now())
	if _, err := tx.ExecContext(ctx, `UPDATE car_entries SET exit_timestamp = ? WHERE entry_id = ?`, entry.ExitedAt, entry.ID); err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit exit: %w", err)
	}

	entry.Derive()
	return &entry, nil
}

// Pending returns cars still in the lane, oldest first.
func (r *EntryRepository) Pending(ctx context.Context) ([]model.CarEntry, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT entry_id, numberplate, enter_timestamp, exit_timestamp
		FROM car_entries
		WHERE exit_timestamp IS NULL
		ORDER BY enter_timestamp ASC, entry_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the latest entries, newest first.
func (r *EntryRepository) Recent(ctx context.Context, limit int) ([]model.CarEntry, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT entry_id, numberplate, enter_timestamp, exit_timestamp
		FROM car_entries
		ORDER BY enter_timestamp DESC, entry_id DESC
		LIMIT ?
	`, repository.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]model.CarEntry, error) {
	entries := []model.CarEntry{}
	for rows.Next() {
		var entry model.CarEntry
		if err := rows.Scan(&entry.ID, &entry.Plate, &entry.EnteredAt, &entry.ExitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entry.Derive()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
