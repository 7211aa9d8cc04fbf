package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/regiorail/horaires/internal/logger"
	"github.com/regiorail/horaires/models"
	"github.com/regiorail/horaires/repository"
)

// StationRepository defines the interface for station data operations
type StationRepository interface {
	ListStations(ctx context.Context) ([]models.Station, error)
	CreateStation(ctx context.Context, name string, code *string) (*models.Station, error)
}

// StationHandler handles HTTP requests for stations
type StationHandler struct {
	repo StationRepository
	log  logger.Logger
}

// NewStationHandler creates a new handler with the given repository
func NewStationHandler(repo StationRepository, log logger.Logger) *StationHandler {
	return &StationHandler{repo: repo, log: log}
}

// ListStationsResponse is the JSON response structure for GET /api/stations
type ListStationsResponse struct {
	Stations    []models.Station `json:"stations"`
	Count       int              `json:"count"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// ListStations handles GET /api/stations
func (h *StationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.repo.ListStations(r.Context())
	if err != nil {
		h.log.Error("Failed to list stations", "error", err)
		writeInternal(w, "Failed to retrieve stations", err)
		return
	}

	writeCachedJSON(w, "300", ListStationsResponse{
		Stations:    stations,
		Count:       len(stations),
		GeneratedAt: time.Now().UTC(),
	})
}

// CreateStation handles POST /api/admin/stations
func (h *StationHandler) CreateStation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidation(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}

	st, err := h.repo.CreateStation(r.Context(), req.Name, req.Code)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			writeError(w, http.StatusConflict, "Station already exists", map[string]interface{}{
				"name": req.Name,
			})
			return
		}
		h.log.Error("Failed to create station", "name", req.Name, "error", err)
		writeInternal(w, "Failed to create station", err)
		return
	}

	h.log.Info("Station created", "id", st.ID.String(), "name", st.Name)
	writeJSON(w, http.StatusCreated, st)
}
