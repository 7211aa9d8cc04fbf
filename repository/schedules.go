package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/regiorail/horaires/internal/calendar"
	"github.com/regiorail/horaires/internal/route"
	"github.com/regiorail/horaires/models"
)

// ListSchedules returns schedules without stops, optionally filtered by line
func (s *Store) ListSchedules(ctx context.Context, line string) ([]models.Schedule, error) {
	query := `
		SELECT id, line, train_number, departure, arrival, calendar, updated_at
		FROM schedules
	`
	var args []interface{}
	if line != "" {
		query += ` WHERE line = ?`
		args = append(args, line)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	schedules := make([]models.Schedule, 0)
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}
	return schedules, nil
}

// GetSchedule returns one schedule with its ordered stops
func (s *Store) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, line, train_number, departure, arrival, calendar, updated_at
		FROM schedules
		WHERE id = ?
	`), id)

	sc, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	sc.Stops, err = s.scheduleStops(ctx, id)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// SaveSchedule inserts or replaces a schedule and its stop sequence.
// It reports whether the schedule was newly created.
func (s *Store) SaveSchedule(ctx context.Context, sc *models.Schedule) (bool, error) {
	cal, err := json.Marshal(sc.Calendar)
	if err != nil {
		return false, fmt.Errorf("failed to encode calendar: %w", err)
	}
	if sc.UpdatedAt.IsZero() {
		sc.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	}
	if len(sc.Stops) > 0 {
		if sc.Departure == "" {
			sc.Departure = sc.Stops[0].StationName
		}
		if sc.Arrival == "" {
			sc.Arrival = sc.Stops[len(sc.Stops)-1].StationName
		}
	}

	created := false
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var existing int
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM schedules WHERE id = ?`), sc.ID).Scan(&existing)
		if err != nil {
			return fmt.Errorf("failed to check schedule: %w", err)
		}
		created = existing == 0

		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO schedules (id, line, train_number, departure, arrival, calendar, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				line = excluded.line,
				train_number = excluded.train_number,
				departure = excluded.departure,
				arrival = excluded.arrival,
				calendar = excluded.calendar,
				updated_at = excluded.updated_at
		`), sc.ID, sc.Line, sc.TrainNumber, sc.Departure, sc.Arrival, string(cal), formatTime(sc.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to upsert schedule: %w", err)
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM schedule_stops WHERE schedule_id = ?`), sc.ID); err != nil {
			return fmt.Errorf("failed to clear stops: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, s.rebind(`
			INSERT INTO schedule_stops (schedule_id, stop_sequence, station_name, arrival_time, departure_time)
			VALUES (?, ?, ?, ?, ?)
		`))
		if err != nil {
			return fmt.Errorf("failed to prepare stop insert: %w", err)
		}
		defer stmt.Close()

		for i, st := range sc.Stops {
			if _, err := stmt.ExecContext(ctx, sc.ID, i+1, st.StationName, st.ArrivalTime, st.DepartureTime); err != nil {
				return fmt.Errorf("failed to insert stop %d: %w", i+1, err)
			}
		}
		return nil
	})
	return created, err
}

func (s *Store) scheduleStops(ctx context.Context, id string) ([]route.Stop, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT station_name, arrival_time, departure_time
		FROM schedule_stops
		WHERE schedule_id = ?
		ORDER BY stop_sequence
	`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	stops := make([]route.Stop, 0)
	for rows.Next() {
		var st route.Stop
		if err := rows.Scan(&st.StationName, &st.ArrivalTime, &st.DepartureTime); err != nil {
			return nil, fmt.Errorf("failed to scan stop: %w", err)
		}
		stops = append(stops, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stops: %w", err)
	}
	return stops, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var sc models.Schedule
	var cal, updatedAt string
	if err := row.Scan(&sc.ID, &sc.Line, &sc.TrainNumber, &sc.Departure, &sc.Arrival, &cal, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}
	sc.Calendar = calendar.Record{}
	if err := json.Unmarshal([]byte(cal), &sc.Calendar); err != nil {
		return nil, fmt.Errorf("schedule %s has an unreadable calendar: %w", sc.ID, err)
	}
	sc.UpdatedAt = parseTime(updatedAt)
	return &sc, nil
}
