package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/regiorail/horaires/handlers"
	"github.com/regiorail/horaires/internal/calendar"
	"github.com/regiorail/horaires/internal/logger"
	"github.com/regiorail/horaires/internal/metrics"
	"github.com/regiorail/horaires/internal/perturbation"
	"github.com/regiorail/horaires/repository"
)

// app bundles what the router needs
type app struct {
	store          *repository.Store
	cals           handlers.Calendars
	bus            *perturbation.Bus
	publisher      perturbation.Publisher
	metrics        *metrics.Collector
	log            logger.Logger
	corsOrigins    []string
	requestTimeout time.Duration
	today          func() time.Time
}

func newRouter(a app) http.Handler {
	stationHandler := handlers.NewStationHandler(a.store, a.log)
	scheduleHandler := handlers.NewScheduleHandler(a.store, a.cals, a.log, a.today)
	perturbationHandler := handlers.NewPerturbationHandler(a.store, a.cals, a.publisher, a.metrics, a.log, a.today)
	streamHandler := handlers.NewStreamHandler(a.bus, a.metrics, a.log)
	healthHandler := handlers.NewHealthHandler(a.store, a.bus)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/healthz", healthHandler.Healthz)
	r.Handle("/metrics", a.metrics.Handler())

	// Long-lived stream, outside the request timeout
	r.Get("/api/perturbations/stream", streamHandler.Stream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(a.requestTimeout))

		// Public
		r.Get("/api/stations", stationHandler.ListStations)
		r.Get("/api/schedules", scheduleHandler.ListSchedules)
		r.Get("/api/schedules/{id}", scheduleHandler.GetSchedule)
		r.Get("/api/schedules/{id}/runs", scheduleHandler.GetRuns)
		r.Get("/api/schedules/{id}/occurrences", scheduleHandler.GetOccurrences)
		r.Get("/api/perturbations", perturbationHandler.ListPerturbations)
		r.Get("/api/perturbations/feed.pb", perturbationHandler.Feed)

		// Admin
		r.Route("/api/admin", func(r chi.Router) {
			r.Post("/stations", stationHandler.CreateStation)
			r.Post("/schedules", scheduleHandler.CreateSchedule)
			r.Put("/schedules/{id}/perturbations/{date}", perturbationHandler.UpsertPerturbation)
			r.Delete("/schedules/{id}/perturbations/{date}", perturbationHandler.DeletePerturbation)
			r.Post("/schedules/{id}/reroute/diff", perturbationHandler.DiffReroute)
		})
	})

	return r
}

// resolverFor closes services on the listed public holidays. The Sunday rule
// needs no list and applies even when no holiday file is configured.
func resolverFor(holidays calendar.HolidaySet) *calendar.Resolver {
	if holidays == nil {
		holidays = calendar.HolidaySet{}
	}
	return calendar.NewResolver(calendar.HolidayClosure{Holidays: holidays})
}
