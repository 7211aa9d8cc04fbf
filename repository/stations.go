package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/regiorail/horaires/internal/route"
	"github.com/regiorail/horaires/models"
)

// ListStations returns every station ordered by name
func (s *Store) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, station_key, code, created_at
		FROM stations
		ORDER BY station_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	stations := make([]models.Station, 0)
	for rows.Next() {
		var st models.Station
		var id, createdAt string
		if err := rows.Scan(&id, &st.Name, &st.Key, &st.Code, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		st.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid station id %q: %w", id, err)
		}
		st.CreatedAt = parseTime(createdAt)
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stations: %w", err)
	}
	return stations, nil
}

// CreateStation inserts a station. Names that fold to an existing station key
// are rejected with ErrConflict.
func (s *Store) CreateStation(ctx context.Context, name string, code *string) (*models.Station, error) {
	st := models.Station{
		ID:        uuid.New(),
		Name:      name,
		Key:       route.StationKey(name),
		Code:      code,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO stations (id, name, station_key, code, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (station_key) DO NOTHING
	`), st.ID.String(), st.Name, st.Key, st.Code, formatTime(st.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert station: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to insert station: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("station %q: %w", name, ErrConflict)
	}
	return &st, nil
}
