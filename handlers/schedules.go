package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/regiorail/horaires/internal/calendar"
	"github.com/regiorail/horaires/internal/logger"
	"github.com/regiorail/horaires/internal/perturbation"
	"github.com/regiorail/horaires/internal/route"
	"github.com/regiorail/horaires/models"
	"github.com/regiorail/horaires/repository"
)

// ScheduleRepository defines the interface for schedule data operations
type ScheduleRepository interface {
	ListSchedules(ctx context.Context, line string) ([]models.Schedule, error)
	GetSchedule(ctx context.Context, id string) (*models.Schedule, error)
	SaveSchedule(ctx context.Context, sc *models.Schedule) (bool, error)
}

// ScheduleHandler handles HTTP requests for schedules and their calendars
type ScheduleHandler struct {
	repo  ScheduleRepository
	cals  Calendars
	log   logger.Logger
	today func() time.Time
}

// NewScheduleHandler creates a new handler. today returns the current service
// date in the exploitation timezone.
func NewScheduleHandler(repo ScheduleRepository, cals Calendars, log logger.Logger, today func() time.Time) *ScheduleHandler {
	return &ScheduleHandler{repo: repo, cals: cals, log: log, today: today}
}

// ListSchedulesResponse is the JSON response structure for GET /api/schedules
type ListSchedulesResponse struct {
	Schedules []models.Schedule `json:"schedules"`
	Count     int               `json:"count"`
}

// ListSchedules handles GET /api/schedules
// Optional ?line= filter
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.repo.ListSchedules(r.Context(), r.URL.Query().Get("line"))
	if err != nil {
		h.log.Error("Failed to list schedules", "error", err)
		writeInternal(w, "Failed to retrieve schedules", err)
		return
	}

	writeCachedJSON(w, "60", ListSchedulesResponse{Schedules: schedules, Count: len(schedules)})
}

// GetSchedule handles GET /api/schedules/{id}
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.loadSchedule(w, r)
	if !ok {
		return
	}

	writeCachedJSON(w, "60", models.ScheduleDetails{
		Schedule: *sc,
		Resolved: models.Summarize(h.cals.Of(*sc)),
	})
}

// GetRuns handles GET /api/schedules/{id}/runs?date=YYYY-MM-DD
// The date defaults to today.
func (h *ScheduleHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = calendar.FormatDate(h.today())
	}

	sc, ok := h.loadSchedule(w, r)
	if !ok {
		return
	}

	day, err := calendar.ParseDate(date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", map[string]interface{}{
			"date": date,
		})
		return
	}
	runs := h.cals.Resolver.RunsOnDate(h.cals.Of(*sc), day)

	writeCachedJSON(w, "60", models.RunsResponse{ScheduleID: sc.ID, Date: calendar.FormatDate(day), Runs: runs})
}

// GetOccurrences handles GET /api/schedules/{id}/occurrences?from=&to=
// Returns one entry per date of the window, running or not.
func (h *ScheduleHandler) GetOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := h.cals.Window(q.Get("from"), q.Get("to"), calendar.FormatDate(h.today()))
	if err != nil {
		writeWindowError(w, err)
		return
	}

	sc, ok := h.loadSchedule(w, r)
	if !ok {
		return
	}

	occurrences := perturbation.Expand(h.cals.Resolver, h.cals.Scheduled([]models.Schedule{*sc}), window)
	writeCachedJSON(w, "60", models.OccurrencesResponse{
		ScheduleID:  sc.ID,
		From:        calendar.FormatDate(window.From),
		To:          calendar.FormatDate(window.To),
		Occurrences: occurrences,
		Count:       len(occurrences),
	})
}

// CreateSchedule handles POST /api/admin/schedules
// Creates or replaces a schedule. Stops are normalised; the calendar object is
// stored as submitted.
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req models.CreateScheduleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidation(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}

	raw := make([]route.RawStop, 0, len(req.Stops))
	for _, s := range req.Stops {
		raw = append(raw, route.RawStop(s))
	}
	stops := route.NormalizeStops(raw)
	if len(stops) < 2 {
		writeError(w, http.StatusBadRequest, "A schedule needs at least two named stops", map[string]interface{}{
			"stops": len(stops),
		})
		return
	}

	sc := &models.Schedule{
		ID:          req.ID,
		Line:        req.Line,
		TrainNumber: req.TrainNumber,
		Calendar:    calendar.Record(req.Calendar),
		Stops:       stops,
	}

	// Surface unreadable masks at write time; reads still degrade to "not running"
	if rawMask, fieldName := calendar.ExtractRawMask(sc.Calendar); !rawMask.Absent() {
		if _, err := h.cals.Codec.Decode(rawMask); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid calendar mask", map[string]interface{}{
				"field": fieldName,
				"error": err.Error(),
			})
			return
		}
	}

	created, err := h.repo.SaveSchedule(r.Context(), sc)
	if err != nil {
		h.log.Error("Failed to save schedule", "id", sc.ID, "error", err)
		writeInternal(w, "Failed to save schedule", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.log.Info("Schedule saved", "id", sc.ID, "line", sc.Line, "created", created, "stops", len(stops))
	writeJSON(w, status, models.ScheduleDetails{Schedule: *sc, Resolved: models.Summarize(h.cals.Of(*sc))})
}

// loadSchedule fetches the {id} schedule, writing the error response on failure
func (h *ScheduleHandler) loadSchedule(w http.ResponseWriter, r *http.Request) (*models.Schedule, bool) {
	return fetchSchedule(w, r, h.repo.GetSchedule, h.log)
}

func fetchSchedule(
	w http.ResponseWriter,
	r *http.Request,
	get func(ctx context.Context, id string) (*models.Schedule, error),
	log logger.Logger,
) (*models.Schedule, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id parameter is required", nil)
		return nil, false
	}

	sc, err := get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Schedule not found", map[string]interface{}{
				"id": id,
			})
			return nil, false
		}
		log.Error("Failed to load schedule", "id", id, "error", err)
		writeInternal(w, "Failed to retrieve schedule", err)
		return nil, false
	}
	return sc, true
}

func writeWindowError(w http.ResponseWriter, err error) {
	msg := "Invalid date window"
	if errors.Is(err, calendar.ErrInvalidDate) {
		msg = "Invalid date"
	}
	writeError(w, http.StatusBadRequest, msg, map[string]interface{}{
		"error": err.Error(),
	})
}
