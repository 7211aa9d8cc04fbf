package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/regiorail/horaires/models"
)

// Pinger checks database connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health
type HealthHandler struct {
	db  Pinger
	bus interface{ Subscribers() int }
}

// NewHealthHandler creates a new handler. bus may be nil.
func NewHealthHandler(db Pinger, bus interface{ Subscribers() int }) *HealthHandler {
	return &HealthHandler{db: db, bus: bus}
}

// Health handles GET /health
// Checks database connectivity
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := models.HealthResponse{
		Status:    models.StatusOK,
		Database:  "connected",
		Timestamp: time.Now().UTC(),
	}
	if h.bus != nil {
		resp.Subscribers = h.bus.Subscribers()
	}

	if err := h.db.Ping(ctx); err != nil {
		resp.Status = models.StatusError
		resp.Database = "disconnected"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Healthz handles GET /healthz
// Liveness only, no dependency checks
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
