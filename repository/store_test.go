package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regiorail/horaires/internal/calendar"
	"github.com/regiorail/horaires/internal/perturbation"
	"github.com/regiorail/horaires/internal/route"
	"github.com/regiorail/horaires/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "horaires.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func clock(s string) *string { return &s }

func saveTestSchedule(t *testing.T, s *Store, id string) *models.Schedule {
	t.Helper()
	sc := &models.Schedule{
		ID:          id,
		Line:        "TER-Metz-Nancy",
		TrainNumber: "860001",
		Calendar:    calendar.Record{"jours_circulation": "1;2;3;4;5", "dimanche_ferie": true},
		Stops: []route.Stop{
			{StationName: "Metz", DepartureTime: clock("07:02")},
			{StationName: "Pont-à-Mousson", ArrivalTime: clock("07:18"), DepartureTime: clock("07:19")},
			{StationName: "Nancy", ArrivalTime: clock("07:40")},
		},
	}
	created, err := s.SaveSchedule(context.Background(), sc)
	require.NoError(t, err)
	require.True(t, created)
	return sc
}

func TestRebind(t *testing.T) {
	pg := NewStore(nil, DriverPostgres)
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))

	lite := NewStore(nil, DriverSQLite)
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestStations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	code := "87192039"
	st, err := s.CreateStation(ctx, "Metz-Ville", &code)
	require.NoError(t, err)
	assert.Equal(t, "metz-ville", st.Key)

	_, err = s.CreateStation(ctx, "Saint-Dié-des-Vosges", nil)
	require.NoError(t, err)

	_, err = s.CreateStation(ctx, "METZ-VILLE", nil)
	assert.ErrorIs(t, err, ErrConflict)

	stations, err := s.ListStations(ctx)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "Metz-Ville", stations[0].Name)
	require.NotNil(t, stations[0].Code)
	assert.Equal(t, code, *stations[0].Code)
	assert.Nil(t, stations[1].Code)
}

func TestScheduleRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	saveTestSchedule(t, s, "860001")

	got, err := s.GetSchedule(ctx, "860001")
	require.NoError(t, err)
	assert.Equal(t, "Metz", got.Departure)
	assert.Equal(t, "Nancy", got.Arrival)
	require.Len(t, got.Stops, 3)
	assert.Equal(t, "Pont-à-Mousson", got.Stops[1].StationName)
	assert.Nil(t, got.Stops[0].ArrivalTime)
	assert.Equal(t, "07:40", *got.Stops[2].ArrivalTime)
	assert.Equal(t, "1;2;3;4;5", got.Calendar["jours_circulation"])

	// Replacing the schedule replaces its stops
	got.Stops = got.Stops[:2]
	got.Arrival = ""
	created, err := s.SaveSchedule(ctx, got)
	require.NoError(t, err)
	assert.False(t, created)

	again, err := s.GetSchedule(ctx, "860001")
	require.NoError(t, err)
	assert.Len(t, again.Stops, 2)
	assert.Equal(t, "Pont-à-Mousson", again.Arrival)

	_, err = s.GetSchedule(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListSchedulesByLine(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	saveTestSchedule(t, s, "860003")
	saveTestSchedule(t, s, "860001")

	other := &models.Schedule{ID: "830001", Line: "TER-Strasbourg", Calendar: calendar.Record{"days": []interface{}{6.0, 7.0}}}
	_, err := s.SaveSchedule(ctx, other)
	require.NoError(t, err)

	all, err := s.ListSchedules(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "830001", all[0].ID)

	metz, err := s.ListSchedules(ctx, "TER-Metz-Nancy")
	require.NoError(t, err)
	require.Len(t, metz, 2)
	assert.Equal(t, "860001", metz[0].ID)
	assert.Empty(t, metz[0].Stops)
}

func TestPerturbationUpsertKeepsID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	saveTestSchedule(t, s, "860001")

	rec := &perturbation.Record{
		ScheduleID:  "860001",
		Date:        "2025-12-24",
		Override:    perturbation.Override{Kind: perturbation.KindDelay, Delay: &perturbation.Delay{FromStation: "Metz", Minutes: 15}},
		Cause:       "Incident technique",
		Fingerprint: "aaaaaaaa",
	}
	created, err := s.UpsertPerturbation(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)
	firstID := rec.ID
	assert.NotEqual(t, uuid.Nil, firstID)

	update := &perturbation.Record{
		ScheduleID:  "860001",
		Date:        "2025-12-24",
		Override:    perturbation.Override{Kind: perturbation.KindCancel},
		Fingerprint: "bbbbbbbb",
	}
	created, err = s.UpsertPerturbation(ctx, update)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstID, update.ID)

	got, err := s.GetPerturbation(ctx, "860001", "2025-12-24")
	require.NoError(t, err)
	assert.Equal(t, perturbation.KindCancel, got.Override.Kind)
	assert.Equal(t, "bbbbbbbb", got.Fingerprint)
	assert.Equal(t, "", got.Cause)
}

func TestListAndDeletePerturbations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	saveTestSchedule(t, s, "860001")

	for _, d := range []string{"2025-12-23", "2025-12-24", "2026-01-02"} {
		_, err := s.UpsertPerturbation(ctx, &perturbation.Record{
			ScheduleID:  "860001",
			Date:        d,
			Override:    perturbation.Override{Kind: perturbation.KindCancel},
			Fingerprint: "cccccccc",
		})
		require.NoError(t, err)
	}

	recs, err := s.ListPerturbations(ctx, "2025-12-24", "2025-12-31")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2025-12-24", recs[0].Date)

	require.NoError(t, s.DeletePerturbation(ctx, "860001", "2025-12-24"))
	assert.ErrorIs(t, s.DeletePerturbation(ctx, "860001", "2025-12-24"), ErrNotFound)

	_, err = s.GetPerturbation(ctx, "860001", "2025-12-24")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}
