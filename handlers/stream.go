package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/regiorail/horaires/internal/logger"
	"github.com/regiorail/horaires/internal/perturbation"
)

// Subscriber hands out perturbation event subscriptions
type Subscriber interface {
	Subscribe() (<-chan perturbation.Event, func())
}

// StreamMetrics tracks open streams
type StreamMetrics interface {
	SubscriberDelta(d float64)
}

// StreamHandler pushes perturbation events to clients as server-sent events
type StreamHandler struct {
	sub       Subscriber
	metrics   StreamMetrics
	log       logger.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new handler. m may be nil.
func NewStreamHandler(sub Subscriber, m StreamMetrics, log logger.Logger) *StreamHandler {
	return &StreamHandler{sub: sub, metrics: m, log: log, heartbeat: 25 * time.Second}
}

// Stream handles GET /api/perturbations/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	events, unsubscribe := h.sub.Subscribe()
	defer unsubscribe()
	if h.metrics != nil {
		h.metrics.SubscriberDelta(1)
		defer h.metrics.SubscriberDelta(-1)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("Failed to encode stream event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
