package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository"
)

// EntryRepository implements repository.EntryRepository for PostgreSQL.
type EntryRepository struct {
	db *sql.DB
}

func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) Enter(ctx context.Context, plate string) (*model.CarEntry, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return nil, repository.ErrEmptyPlate
	}

	var entry model.CarEntry
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO car_entries (numberplate, enter_timestamp, exit_timestamp)
		VALUES ($1, NOW(), NULL)
		RETURNING entry_id, numberplate, enter_timestamp, exit_timestamp
	`, plate).Scan(&entry.ID, &entry.Plate, &entry.EnteredAt, &entry.ExitedAt)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	return &entry, nil
}

// Exit closes the longest-waiting open entry in a single statement.
func (r *EntryRepository) Exit(ctx context.Context) (*model.CarEntry, error) {
	var entry model.CarEntry
	err := r.db.QueryRowContext(ctx, `
		UPDATE car_entries
		SET exit_timestamp = NOW()
		WHERE entry_id = (
			SELECT entry_id FROM car_entries
			WHERE exit_timestamp IS NULL
			ORDER BY enter_timestamp ASC, entry_id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING entry_id, numberplate, enter_timestamp, exit_timestamp
	`).Scan(&entry.ID, &entry.Plate, &entry.EnteredAt, &entry.ExitedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNoOpenEntry
	}
	if err != nil {
		return nil, fmt.Errorf("exit entry: %w", err)
	}
	entry.Derive()
	return &entry, nil
}

func (r *EntryRepository) Pending(ctx context.Context) ([]model.CarEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_id, numberplate, enter_timestamp, exit_timestamp
		FROM car_entries
		WHERE exit_timestamp IS NULL
		ORDER BY enter_timestamp ASC, entry_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *EntryRepository) Recent(ctx context.Context, limit int) ([]model.CarEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_id, numberplate, enter_timestamp, exit_timestamp
		FROM car_entries
		ORDER BY enter_timestamp DESC, entry_id DESC
		LIMIT $1
	`, repository.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]model.CarEntry, error) {
	entries := []model.CarEntry{}
	for rows.Next() {
		var entry model.CarEntry
		if err := rows.Scan(&entry.ID, &entry.Plate, &entry.EnteredAt, &entry.ExitedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.Derive()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
