package handlers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regiorail/horaires/internal/calendar"
	"github.com/regiorail/horaires/internal/logger"
	"github.com/regiorail/horaires/internal/perturbation"
	"github.com/regiorail/horaires/internal/route"
	"github.com/regiorail/horaires/models"
	"github.com/regiorail/horaires/repository"
)

// fakeRepo is an in-memory implementation of every repository interface
type fakeRepo struct {
	mu            sync.Mutex
	stations      []models.Station
	schedules     map[string]models.Schedule
	perturbations map[perturbation.Key]perturbation.Record
	upserts       int
	failWith      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		schedules:     map[string]models.Schedule{},
		perturbations: map[perturbation.Key]perturbation.Record{},
	}
}

func (f *fakeRepo) ListStations(ctx context.Context) ([]models.Station, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.stations, nil
}

func (f *fakeRepo) CreateStation(ctx context.Context, name string, code *string) (*models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.stations {
		if s.Name == name {
			return nil, fmt.Errorf("station %q: %w", name, repository.ErrConflict)
		}
	}
	st := models.Station{ID: uuid.New(), Name: name, Code: code}
	f.stations = append(f.stations, st)
	return &st, nil
}

func (f *fakeRepo) ListSchedules(ctx context.Context, line string) ([]models.Schedule, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([]models.Schedule, 0)
	for _, s := range f.schedules {
		if line == "" || s.Line == line {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	s, ok := f.schedules[id]
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", id, repository.ErrNotFound)
	}
	return &s, nil
}

func (f *fakeRepo) SaveSchedule(ctx context.Context, sc *models.Schedule) (bool, error) {
	_, exists := f.schedules[sc.ID]
	f.schedules[sc.ID] = *sc
	return !exists, nil
}

func (f *fakeRepo) GetPerturbation(ctx context.Context, scheduleID, date string) (*perturbation.Record, error) {
	rec, ok := f.perturbations[perturbation.Key{ScheduleID: scheduleID, Date: date}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeRepo) ListPerturbations(ctx context.Context, from, to string) ([]perturbation.Record, error) {
	out := make([]perturbation.Record, 0)
	for _, rec := range f.perturbations {
		if rec.Date >= from && rec.Date <= to {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpsertPerturbation(ctx context.Context, rec *perturbation.Record) (bool, error) {
	f.upserts++
	existing, ok := f.perturbations[rec.Key()]
	if ok {
		rec.ID = existing.ID
	} else {
		rec.ID = uuid.New()
	}
	f.perturbations[rec.Key()] = *rec
	return !ok, nil
}

func (f *fakeRepo) DeletePerturbation(ctx context.Context, scheduleID, date string) error {
	key := perturbation.Key{ScheduleID: scheduleID, Date: date}
	if _, ok := f.perturbations[key]; !ok {
		return repository.ErrNotFound
	}
	delete(f.perturbations, key)
	return nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	events []perturbation.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev perturbation.Event) error {
	p.events = append(p.events, ev)
	return nil
}

type countingMutations map[string]int

func (c countingMutations) MutationInc(action string) { c[action]++ }

func strPtr(s string) *string { return &s }

// seedSchedules stores two weekday schedules and one weekend schedule
func seedSchedules(f *fakeRepo) {
	f.schedules["860001"] = models.Schedule{
		ID: "860001", Line: "metz-nancy", TrainNumber: "860001",
		Calendar: calendar.Record{"jours_circulation": "1;2;3;4;5"},
		Stops: []route.Stop{
			{StationName: "Metz", DepartureTime: strPtr("07:02")},
			{StationName: "Pont-à-Mousson", ArrivalTime: strPtr("07:18")},
			{StationName: "Nancy", ArrivalTime: strPtr("07:40")},
		},
	}
	f.schedules["860003"] = models.Schedule{
		ID: "860003", Line: "metz-nancy",
		Calendar: calendar.Record{"days_mask": 31.0},
	}
	f.schedules["830101"] = models.Schedule{
		ID: "830101", Line: "strasbourg-colmar",
		Calendar: calendar.Record{"days": []interface{}{6.0, 7.0}},
	}
}

func testCalendars() Calendars {
	return Calendars{
		Codec:         calendar.NewCodec(logger.Nop(), nil),
		Resolver:      calendar.NewResolver(nil),
		MaxWindowDays: 31,
	}
}

// fixedDay is a Wednesday
func fixedDay() time.Time {
	return time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC)
}
