package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/regiorail/horaires/handlers"
	"github.com/regiorail/horaires/internal/calendar"
	"github.com/regiorail/horaires/internal/config"
	"github.com/regiorail/horaires/internal/logger"
	"github.com/regiorail/horaires/internal/metrics"
	"github.com/regiorail/horaires/internal/perturbation"
	"github.com/regiorail/horaires/internal/publisher"
	"github.com/regiorail/horaires/repository"
)

func main() {
	// Load base .env first, then the environment
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.FilePath = cfg.LogFile
	lg := logger.New(logCfg)

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dsn := cfg.SQLitePath
	if cfg.DBDriver == repository.DriverPostgres {
		dsn = cfg.DatabaseURL
	}
	store, err := repository.Open(ctx, cfg.DBDriver, dsn)
	if err != nil {
		lg.Fatal("Failed to initialize database", "driver", cfg.DBDriver, "error", err)
	}
	defer store.Close()
	lg.Info("Database connection established", "driver", cfg.DBDriver)

	mcol := metrics.NewCollector()

	var holidays calendar.HolidaySet
	if cfg.HolidaysFile != "" {
		holidays, err = calendar.LoadHolidays(cfg.HolidaysFile)
		if err != nil {
			lg.Fatal("Failed to load holidays", "file", cfg.HolidaysFile, "error", err)
		}
		lg.Info("Public holidays loaded", "file", cfg.HolidaysFile, "count", len(holidays))
	}

	cals := handlers.Calendars{
		Codec:         calendar.NewCodec(lg, mcol),
		Resolver:      resolverFor(holidays),
		MaxWindowDays: cfg.MaxWindowDays,
	}

	// Override events: in-process bus for streams, NATS when configured
	bus := perturbation.NewBus(64)
	defer bus.Close()
	publishers := perturbation.MultiPublisher{bus}
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, lg, mcol)
		if err != nil {
			lg.Fatal("Failed to connect to NATS", "url", cfg.NATSURL, "error", err)
		}
		defer pub.Close()
		publishers = append(publishers, pub)
		lg.Info("Publishing perturbation events to NATS", "prefix", cfg.NATSSubjectPrefix)
	}

	router := newRouter(app{
		store:          store,
		cals:           cals,
		bus:            bus,
		publisher:      publishers,
		metrics:        mcol,
		log:            lg,
		corsOrigins:    cfg.CORSOrigins,
		requestTimeout: cfg.RequestTimeout,
		today:          func() time.Time { return cfg.Today(time.Now()) },
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// Close streams first so Shutdown does not wait on them
		bus.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown failed", "error", err)
		}
	}()

	lg.Info("API server starting", "port", cfg.Port, "timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("Server failed to start", "error", err)
	}
	lg.Info("API server stopped")
}
