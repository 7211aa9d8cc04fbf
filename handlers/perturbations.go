package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/regiorail/horaires/internal/calendar"
	"github.com/regiorail/horaires/internal/gtfsrt"
	"github.com/regiorail/horaires/internal/logger"
	"github.com/regiorail/horaires/internal/perturbation"
	"github.com/regiorail/horaires/internal/route"
	"github.com/regiorail/horaires/models"
	"github.com/regiorail/horaires/repository"
)

// PerturbationRepository defines the data operations behind daily overrides
type PerturbationRepository interface {
	ListSchedules(ctx context.Context, line string) ([]models.Schedule, error)
	GetSchedule(ctx context.Context, id string) (*models.Schedule, error)
	GetPerturbation(ctx context.Context, scheduleID, date string) (*perturbation.Record, error)
	ListPerturbations(ctx context.Context, from, to string) ([]perturbation.Record, error)
	UpsertPerturbation(ctx context.Context, rec *perturbation.Record) (bool, error)
	DeletePerturbation(ctx context.Context, scheduleID, date string) error
}

// MutationMetrics counts admin mutation outcomes
type MutationMetrics interface {
	MutationInc(action string)
}

// PerturbationHandler serves the perturbation listing, the GTFS-RT export and
// the admin override endpoints
type PerturbationHandler struct {
	repo      PerturbationRepository
	cals      Calendars
	publisher perturbation.Publisher
	metrics   MutationMetrics
	log       logger.Logger
	today     func() time.Time
	now       func() time.Time
}

// NewPerturbationHandler creates a new handler. publisher and m may be nil.
func NewPerturbationHandler(
	repo PerturbationRepository,
	cals Calendars,
	publisher perturbation.Publisher,
	m MutationMetrics,
	log logger.Logger,
	today func() time.Time,
) *PerturbationHandler {
	return &PerturbationHandler{
		repo:      repo,
		cals:      cals,
		publisher: publisher,
		metrics:   m,
		log:       log,
		today:     today,
		now:       time.Now,
	}
}

// ListPerturbations handles GET /api/perturbations?from=&to=&line=&all=
// Returns running occurrences of the window with their overrides. Only
// perturbed occurrences are listed unless all=true.
func (h *PerturbationHandler) ListPerturbations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := h.cals.Window(q.Get("from"), q.Get("to"), calendar.FormatDate(h.today()))
	if err != nil {
		writeWindowError(w, err)
		return
	}
	all, _ := strconv.ParseBool(q.Get("all"))

	enriched, err := h.overlay(r.Context(), window, q.Get("line"))
	if err != nil {
		h.log.Error("Failed to build perturbation overlay", "error", err)
		writeInternal(w, "Failed to retrieve perturbations", err)
		return
	}
	if !all {
		enriched = perturbation.Perturbed(enriched)
	}

	w.Header().Set("Cache-Control", "public, max-age=15, stale-while-revalidate=10")
	writeJSON(w, http.StatusOK, models.PerturbationsResponse{
		From:        calendar.FormatDate(window.From),
		To:          calendar.FormatDate(window.To),
		Occurrences: enriched,
		Count:       len(enriched),
	})
}

// Feed handles GET /api/perturbations/feed.pb
// Returns today's perturbations as a GTFS-Realtime FeedMessage
func (h *PerturbationHandler) Feed(w http.ResponseWriter, r *http.Request) {
	enriched, err := h.overlay(r.Context(), perturbation.SingleDay(h.today()), r.URL.Query().Get("line"))
	if err != nil {
		h.log.Error("Failed to build perturbation feed", "error", err)
		writeInternal(w, "Failed to build feed", err)
		return
	}

	b, err := gtfsrt.Marshal(gtfsrt.BuildFeed(enriched, h.now()))
	if err != nil {
		h.log.Error("Failed to encode perturbation feed", "error", err)
		writeInternal(w, "Failed to encode feed", err)
		return
	}

	w.Header().Set("Content-Type", gtfsrt.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=15")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpsertPerturbation handles PUT /api/admin/schedules/{id}/perturbations/{date}
// Body: {"type": "delay"|"cancel"|"reroute" (or French aliases), ...variant fields, "cause", "message"}
func (h *PerturbationHandler) UpsertPerturbation(w http.ResponseWriter, r *http.Request) {
	date, ok := h.pathDate(w, r)
	if !ok {
		return
	}
	sc, ok := fetchSchedule(w, r, h.repo.GetSchedule, h.log)
	if !ok {
		return
	}

	var body map[string]interface{}
	if err := decodeBody(w, r, &body); err != nil {
		writeValidation(w, err)
		return
	}
	meta := models.PerturbationMeta{
		Cause:   bodyString(body, "cause", "cause_perturbation"),
		Message: bodyString(body, "message", "commentaire"),
	}
	if err := validate.Struct(meta); err != nil {
		writeValidation(w, err)
		return
	}

	override, err := perturbation.ParseOverride(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid perturbation", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	fp, err := perturbation.Fingerprint(override)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid perturbation", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	ctx := r.Context()
	existing, err := h.repo.GetPerturbation(ctx, sc.ID, date)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.log.Error("Failed to load perturbation", "schedule", sc.ID, "date", date, "error", err)
		writeInternal(w, "Failed to retrieve perturbation", err)
		return
	}
	if existing != nil && existing.Fingerprint == fp && existing.Cause == meta.Cause && existing.Message == meta.Message &&
		sameOverride(existing.Override, override) {
		h.countMutation(models.MutationUnchanged)
		writeJSON(w, http.StatusOK, models.MutationResponse{Status: models.MutationUnchanged, Record: existing})
		return
	}

	rec := &perturbation.Record{
		ScheduleID:  sc.ID,
		Date:        date,
		Override:    override,
		Cause:       meta.Cause,
		Message:     meta.Message,
		Fingerprint: fp,
		UpdatedAt:   h.now().UTC().Truncate(time.Second),
	}
	created, err := h.repo.UpsertPerturbation(ctx, rec)
	if err != nil {
		h.log.Error("Failed to store perturbation", "schedule", sc.ID, "date", date, "error", err)
		writeInternal(w, "Failed to store perturbation", err)
		return
	}

	status, evType, action := http.StatusOK, perturbation.EventUpdated, models.MutationUpdated
	if created {
		status, evType, action = http.StatusCreated, perturbation.EventCreated, models.MutationCreated
	}
	h.countMutation(action)
	h.log.Info("Perturbation stored",
		"schedule", sc.ID, "date", date, "kind", string(override.Kind), "fingerprint", fp, "action", action)
	h.publish(ctx, perturbation.Event{
		Type:        evType,
		ScheduleID:  sc.ID,
		Date:        date,
		Kind:        override.Kind,
		Fingerprint: fp,
		At:          rec.UpdatedAt,
	})

	writeJSON(w, status, models.MutationResponse{Status: action, Record: rec})
}

// DeletePerturbation handles DELETE /api/admin/schedules/{id}/perturbations/{date}
func (h *PerturbationHandler) DeletePerturbation(w http.ResponseWriter, r *http.Request) {
	date, ok := h.pathDate(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.repo.DeletePerturbation(r.Context(), id, date); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Perturbation not found", map[string]interface{}{
				"id":   id,
				"date": date,
			})
			return
		}
		h.log.Error("Failed to delete perturbation", "schedule", id, "date", date, "error", err)
		writeInternal(w, "Failed to delete perturbation", err)
		return
	}

	h.countMutation(models.MutationDeleted)
	h.log.Info("Perturbation deleted", "schedule", id, "date", date)
	h.publish(r.Context(), perturbation.Event{
		Type:       perturbation.EventDeleted,
		ScheduleID: id,
		Date:       date,
		At:         h.now().UTC().Truncate(time.Second),
	})

	writeJSON(w, http.StatusOK, models.MutationResponse{Status: models.MutationDeleted})
}

// DiffReroute handles POST /api/admin/schedules/{id}/reroute/diff
// Previews a reroute against the stored stop sequence without saving anything.
func (h *PerturbationHandler) DiffReroute(w http.ResponseWriter, r *http.Request) {
	sc, ok := fetchSchedule(w, r, h.repo.GetSchedule, h.log)
	if !ok {
		return
	}

	var req models.RerouteDiffRequest
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
	diff := route.DiffRoutes(sc.Stops, stops)

	writeJSON(w, http.StatusOK, models.RerouteDiffResponse{
		ScheduleID: sc.ID,
		Stops:      stops,
		Diff:       diff,
		Unchanged:  diff.Unchanged(),
	})
}

// overlay expands the window over the (optionally line-filtered) schedules and
// attaches the stored overrides
func (h *PerturbationHandler) overlay(ctx context.Context, window perturbation.Window, line string) ([]perturbation.EnrichedOccurrence, error) {
	schedules, err := h.repo.ListSchedules(ctx, line)
	if err != nil {
		return nil, err
	}
	records, err := h.repo.ListPerturbations(ctx, calendar.FormatDate(window.From), calendar.FormatDate(window.To))
	if err != nil {
		return nil, err
	}

	base := perturbation.Expand(h.cals.Resolver, h.cals.Scheduled(schedules), window)
	return perturbation.MergeOverlay(base, perturbation.IndexRecords(records)), nil
}

func (h *PerturbationHandler) pathDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "date")
	d, err := calendar.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", map[string]interface{}{
			"date": raw,
		})
		return "", false
	}
	return calendar.FormatDate(d), true
}

// publish delivers ev; the mutation is already stored so failures are only logged
func (h *PerturbationHandler) publish(ctx context.Context, ev perturbation.Event) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, ev); err != nil {
		h.log.Error("Failed to publish perturbation event",
			"schedule", ev.ScheduleID, "date", ev.Date, "type", string(ev.Type), "error", err)
	}
}

func (h *PerturbationHandler) countMutation(action string) {
	if h.metrics != nil {
		h.metrics.MutationInc(action)
	}
}

func bodyString(body map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := body[k].(string); ok {
			return s
		}
	}
	return ""
}

// sameOverride compares the stored spelling too. The fingerprint folds case
// and accents in station names, so a corrected name must still be written.
func sameOverride(a, b perturbation.Override) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}
