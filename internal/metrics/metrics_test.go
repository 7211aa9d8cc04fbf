package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	c := NewCollector()

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/schedules/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedules/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("/api/schedules/{id}", "GET", "404")))
}

func TestDomainCounters(t *testing.T) {
	c := NewCollector()
	c.MalformedMaskInc()
	c.MutationInc("unchanged")
	c.MutationInc("unchanged")
	c.PublishErrInc("nats")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.MalformedMasks))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.PerturbationMutations.WithLabelValues("unchanged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EventPublishErrors.WithLabelValues("nats")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "horaires_calendar_malformed_masks_total 1"))
}
