package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the API and domain metrics
type Collector struct {
	reg *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec   // route, method, status
	HTTPRequestDuration *prometheus.HistogramVec // route

	MalformedMasks        prometheus.Counter
	PerturbationMutations *prometheus.CounterVec // action: created|updated|unchanged|deleted
	EventsPublished       *prometheus.CounterVec // sink
	EventPublishErrors    *prometheus.CounterVec // sink
	EventSubscribers      prometheus.Gauge
}

// NewCollector creates and registers every metric
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "horaires_http_requests_total",
			Help: "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "horaires_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"route"}),
		MalformedMasks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "horaires_calendar_malformed_masks_total",
			Help: "Calendar mask values that could not be parsed and were treated as not running.",
		}),
		PerturbationMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "horaires_perturbation_mutations_total",
			Help: "Override mutations by outcome.",
		}, []string{"action"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "horaires_events_published_total",
			Help: "Perturbation events published by sink.",
		}, []string{"sink"}),
		EventPublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "horaires_event_publish_errors_total",
			Help: "Perturbation event publish failures by sink.",
		}, []string{"sink"}),
		EventSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "horaires_event_stream_subscribers",
			Help: "Open server-sent event streams.",
		}),
	}

	reg.MustRegister(
		c.HTTPRequests, c.HTTPRequestDuration,
		c.MalformedMasks, c.PerturbationMutations,
		c.EventsPublished, c.EventPublishErrors, c.EventSubscribers,
		collectors.NewGoCollector(),
	)

	return c
}

// Handler exposes the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// MalformedMaskInc implements calendar.MaskMetrics
func (c *Collector) MalformedMaskInc() { c.MalformedMasks.Inc() }

// MutationInc counts an override mutation outcome
func (c *Collector) MutationInc(action string) { c.PerturbationMutations.WithLabelValues(action).Inc() }

// PublishedInc counts a delivered event
func (c *Collector) PublishedInc(sink string) { c.EventsPublished.WithLabelValues(sink).Inc() }

// PublishErrInc counts a failed event delivery
func (c *Collector) PublishErrInc(sink string) { c.EventPublishErrors.WithLabelValues(sink).Inc() }

// SubscriberDelta adjusts the open stream gauge
func (c *Collector) SubscriberDelta(d float64) { c.EventSubscribers.Add(d) }

// Middleware records request count and latency labelled by chi route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				pattern = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(pattern, r.Method, strconv.Itoa(status)).Inc()
		c.HTTPRequestDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	})
}
