// Checkweigher Collector
//
// Polls configured Modbus/TCP checkweigher devices, decodes weight and
// state-change events, and persists them to Postgres in batches. Runs
// as one of two sibling OS processes alongside the API server; they
// share state only through the database.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowcatalyst-checkweigher/supervisor/internal/collector"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/common/health"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/common/lifecycle"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	setupLogging()

	slog.Info("starting checkweigher collector",
		"version", version,
		"build_time", buildTime,
		"component", "collector")

	ctx := context.Background()

	cfg, err := config.LoadWithFile()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	col, err := collector.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise collector", "error", err)
		os.Exit(1)
	}

	healthChecker := health.NewChecker()
	healthChecker.AddCheck(health.DatabaseCheck(func() error {
		return col.Pool.Ping(context.Background())
	}))

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port+1),
		Handler:      metricsHandler(healthChecker),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	services := []lifecycle.Service{
		lifecycle.NewHTTPService("metrics-server", metricsServer),
		col,
	}

	slog.Info("collector ready", "devices", len(cfg.Devices), "metrics_addr", metricsServer.Addr)

	if err := lifecycle.Run(ctx, services...); err != nil {
		slog.Error("service error", "error", err)
		os.Exit(1)
	}

	slog.Info("checkweigher collector stopped")
}

func setupLogging() {
	logLevel := slog.LevelInfo
	if os.Getenv("CHECKWEIGHER_DEV") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func metricsHandler(checker *health.Checker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", checker.HandleHealth)
	return mux
}
