// Checkweigher Query API
//
// Serves the read-only HTTP surface over measurements, state events, and
// collector heartbeats. Runs as one of two sibling OS processes
// alongside the collector; the two share state only through the
// database, never through process memory.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"log/slog"

	"github.com/flowcatalyst-checkweigher/supervisor/internal/api"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/common/health"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/common/lifecycle"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/config"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/store"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	setupLogging()

	slog.Info("starting checkweigher query api",
		"version", version,
		"build_time", buildTime,
		"component", "api")

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

	pool, err := store.Open(cfg.Global.DatabaseURL)
	if err != nil {
		slog.Error("failed to open connection pool", "error", err)
		os.Exit(1)
	}

	healthChecker := health.NewChecker()
	healthChecker.AddCheck(health.DatabaseCheck(func() error {
		return pool.Ping(context.Background())
	}))

	server := api.NewServer(pool, healthChecker)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler:      server.Router(cfg.API.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	services := []lifecycle.Service{
		lifecycle.NewHTTPService("api-server", httpServer),
	}

	slog.Info("query api ready", "addr", httpServer.Addr)

	if err := lifecycle.Run(ctx, services...); err != nil {
		slog.Error("service error", "error", err)
		os.Exit(1)
	}

	if err := pool.Close(); err != nil {
		slog.Error("error closing pool", "error", err)
	}

	slog.Info("checkweigher query api stopped")
}

func setupLogging() {
	logLevel := slog.LevelInfo
	if os.Getenv("CHECKWEIGHER_DEV") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
