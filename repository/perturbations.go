package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/regiorail/horaires/internal/perturbation"
)

const perturbationColumns = `id, schedule_id, service_date, kind, payload, cause, message, fingerprint, updated_at`

// GetPerturbation returns the override stored for one occurrence
func (s *Store) GetPerturbation(ctx context.Context, scheduleID, date string) (*perturbation.Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+perturbationColumns+`
		FROM perturbations
		WHERE schedule_id = ? AND service_date = ?
	`), scheduleID, date)

	rec, err := scanPerturbation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("perturbation %s on %s: %w", scheduleID, date, ErrNotFound)
		}
		return nil, err
	}
	return rec, nil
}

// ListPerturbations returns overrides whose date falls in [from, to]
func (s *Store) ListPerturbations(ctx context.Context, from, to string) ([]perturbation.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+perturbationColumns+`
		FROM perturbations
		WHERE service_date >= ? AND service_date <= ?
		ORDER BY service_date, schedule_id
	`), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query perturbations: %w", err)
	}
	defer rows.Close()

	records := make([]perturbation.Record, 0)
	for rows.Next() {
		rec, err := scanPerturbation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating perturbations: %w", err)
	}
	return records, nil
}

// UpsertPerturbation stores rec for its (schedule, date). An existing row keeps
// its id; rec.ID is updated to the stored id. It reports whether a row was created.
func (s *Store) UpsertPerturbation(ctx context.Context, rec *perturbation.Record) (bool, error) {
	payload, err := json.Marshal(rec.Override)
	if err != nil {
		return false, fmt.Errorf("failed to encode override: %w", err)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	}

	created := false
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var existingID string
		err := tx.QueryRowContext(ctx, s.rebind(`
			SELECT id FROM perturbations WHERE schedule_id = ? AND service_date = ?
		`), rec.ScheduleID, rec.Date).Scan(&existingID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
			if rec.ID == uuid.Nil {
				rec.ID = uuid.New()
			}
		case err != nil:
			return fmt.Errorf("failed to look up perturbation: %w", err)
		default:
			id, err := uuid.Parse(existingID)
			if err != nil {
				return fmt.Errorf("invalid perturbation id %q: %w", existingID, err)
			}
			rec.ID = id
		}

		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO perturbations (`+perturbationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (schedule_id, service_date) DO UPDATE SET
				kind = excluded.kind,
				payload = excluded.payload,
				cause = excluded.cause,
				message = excluded.message,
				fingerprint = excluded.fingerprint,
				updated_at = excluded.updated_at
		`), rec.ID.String(), rec.ScheduleID, rec.Date, string(rec.Override.Kind), string(payload),
			rec.Cause, rec.Message, rec.Fingerprint, formatTime(rec.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to upsert perturbation: %w", err)
		}
		return nil
	})
	return created, err
}

// DeletePerturbation removes the override for one occurrence
func (s *Store) DeletePerturbation(ctx context.Context, scheduleID, date string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM perturbations WHERE schedule_id = ? AND service_date = ?
	`), scheduleID, date)
	if err != nil {
		return fmt.Errorf("failed to delete perturbation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete perturbation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("perturbation %s on %s: %w", scheduleID, date, ErrNotFound)
	}
	return nil
}

func scanPerturbation(row rowScanner) (*perturbation.Record, error) {
	var rec perturbation.Record
	var id, kind, payload, updatedAt string
	err := row.Scan(&id, &rec.ScheduleID, &rec.Date, &kind, &payload,
		&rec.Cause, &rec.Message, &rec.Fingerprint, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan perturbation: %w", err)
	}

	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid perturbation id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Override); err != nil {
		return nil, fmt.Errorf("perturbation %s has an unreadable payload: %w", id, err)
	}
	if err := rec.Override.Validate(); err != nil {
		return nil, fmt.Errorf("perturbation %s (%s): %w", id, kind, err)
	}
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}
