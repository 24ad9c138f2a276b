// cmd/catalog/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ledgerlib/internal/catalog"
	"ledgerlib/internal/config"
	"ledgerlib/internal/host"
	"ledgerlib/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "catalog", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.StorageDriver, err)
	}
	defer backend.Close()

	metrics := telemetry.NewHTTPMetrics("catalog")
	meterProvider, err := telemetry.SetupMetrics("catalog", metrics)
	if err != nil {
		log.Fatalf("Failed to set up metrics: %v", err)
	}
	defer meterProvider.Shutdown(context.Background())

	env := host.New(backend.port, host.WithJournal(backend.journal))
	svc := catalog.NewService(env, catalog.WithMeterProvider(meterProvider))
	handler := catalog.NewHandler(svc, catalog.WithCreateLimit(cfg.CreateRatePerMinute))

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	router.Mount("/", handler.Routes())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Catalog service listening on port %s (storage=%s)", cfg.Port, cfg.StorageDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
