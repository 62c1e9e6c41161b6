// Package api implements the external query surface (GET /api/v1/pesagens,
// /api/v1/eventos, /api/v1/realtime/{cw_name}, /api/v1/hhh, plus
// unprefixed /health) served by the api process. It never touches a
// Poller or Monitor directly — the collector and api processes share
// state only through the database.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/flowcatalyst-checkweigher/supervisor/internal/common/health"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/store"
)

// rateLimit bounds requests across all callers of the unauthenticated
// query surface — there is no API key, so this is the only throttle in
// front of the database.
const (
	rateLimitPerSecond = 20
	rateLimitBurst     = 40
)

// Server holds the repositories backing the query surface.
type Server struct {
	measurements *store.MeasurementRepository
	events       *store.EventRepository
	heartbeats   *store.HeartbeatRepository
	checker      *health.Checker
}

// NewServer builds a Server bound to pool's repositories.
func NewServer(pool *store.Pool, checker *health.Checker) *Server {
	return &Server{
		measurements: store.NewMeasurementRepository(pool),
		events:       store.NewEventRepository(pool),
		heartbeats:   store.NewHeartbeatRepository(pool),
		checker:      checker,
	}
}

// Router builds the chi router with CORS, rate limiting, and every
// route from spec.md §6's external interface table.
func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.checker.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate(rateLimitPerSecond, rateLimitBurst))
		r.Get("/pesagens", s.handlePesagens)
		r.Get("/eventos", s.handleEventos)
		r.Get("/realtime/{cw_name}", s.handleRealtime)
		r.Get("/hhh", s.handleHHH)
	})

	return r
}

// httprate wraps golang.org/x/time/rate as chi middleware, sharing one
// limiter across all callers — the query surface has no per-key
// identity to limit on individually.
func httprate(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
