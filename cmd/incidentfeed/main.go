package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deusflow/incidentfeed/internal/app"
	"github.com/deusflow/incidentfeed/internal/config"
	"github.com/deusflow/incidentfeed/internal/logger"
	"github.com/deusflow/incidentfeed/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.Debug, cfg.LogFormat)

	// Check if we should start HTTP server for monitoring
	if cfg.EnableHTTPMonitoring {
		go startMonitoringServer(cfg.MonitoringPort, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := app.Run(ctx, cfg, log); err != nil {
		log.Error("run aborted", "error", err)
		stop()
		os.Exit(1)
	}
}

func startMonitoringServer(port string, log *slog.Logger) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           monitoringMux(metrics.Global),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting monitoring server", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("monitoring server error", "error", err)
	}
}

func monitoringMux(m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", healthHandler(m))
	r.Get("/metrics", metricsHandler(m))
	return r
}

func healthHandler(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := m.GetStats()

		status := "ok"
		code := http.StatusOK
		if !m.Healthy() {
			status = "error"
			code = http.StatusServiceUnavailable
		}

		response := map[string]interface{}{
			"status":          status,
			"last_run":        stats["last_run_time"],
			"last_run_status": stats["last_run_status"],
			"last_error":      stats["last_error"],
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(response)
	}
}

func metricsHandler(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.GetStats())
	}
}
