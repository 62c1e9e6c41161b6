package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowcatalyst-checkweigher/supervisor/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseDay parses a "YYYY-MM-DD" query parameter.
func parseDay(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// defaultPeriodOffset is applied to "periodOffset" when "period" is
// given but "periodOffset" is not, per spec.md §6.
const defaultPeriodOffset = 15

// parsePeriod parses the "period" (central day, "YYYY-MM-DD") query
// parameter.
func parsePeriod(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func parseInt16(raw string) (*int16, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 16)
	if err != nil {
		return nil, err
	}
	v := int16(n)
	return &v, nil
}

// handlePesagens serves GET /api/v1/pesagens: maquina_id, classificacao, data
// or period+periodOffset, and limit filters, per spec.md §6. A period
// filter wins over a single-day filter when both are given (§4.8, §9).
func (s *Server) handlePesagens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	day, err := parseDay(q.Get("data"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid data")
		return
	}
	period, err := parsePeriod(q.Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period")
		return
	}
	classification, err := parseInt16(q.Get("classificacao"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid classificacao")
		return
	}

	offset := defaultPeriodOffset
	if raw := q.Get("periodOffset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			offset = n
		}
	}

	rows, err := s.measurements.Find(r.Context(), store.MeasurementQuery{
		DeviceID:       q.Get("maquina_id"),
		Classification: classification,
		Day:            day,
		PeriodCentral:  period,
		PeriodOffset:   offset,
		Limit:          parseLimit(q.Get("limit")),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleEventos serves GET /api/v1/eventos: same filter shape as /pesagens,
// with "reason" in place of "classificacao".
func (s *Server) handleEventos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	day, err := parseDay(q.Get("data"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid data")
		return
	}
	period, err := parsePeriod(q.Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period")
		return
	}
	reason, err := parseInt16(q.Get("reason"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reason")
		return
	}

	offset := defaultPeriodOffset
	if raw := q.Get("periodOffset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			offset = n
		}
	}

	rows, err := s.events.Find(r.Context(), store.EventQuery{
		DeviceID:      q.Get("maquina_id"),
		Reason:        reason,
		Day:           day,
		PeriodCentral: period,
		PeriodOffset:  offset,
		Limit:         parseLimit(q.Get("limit")),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleRealtime serves GET /api/v1/realtime/{cw_name}: the single most recent
// measurement for a device. Reads the database rather than an in-process
// Poller snapshot, since the api process never shares memory with the
// collector process that owns the live pollers.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	cwName := chi.URLParam(r, "cw_name")
	if cwName == "" {
		writeError(w, http.StatusBadRequest, "cw_name is required")
		return
	}

	rows, err := s.measurements.Find(r.Context(), store.MeasurementQuery{
		DeviceID: cwName,
		Limit:    1,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "no measurements for device")
		return
	}
	writeJSON(w, http.StatusOK, rows[0])
}

// handleHHH serves GET /api/v1/hhh: the supervisor monitor's latest snapshot,
// as last flushed to the database by the collector process.
func (s *Server) handleHHH(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.heartbeats.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	now := time.Now()
	out := make(map[string]map[string]interface{}, len(snapshot))
	for name, e := range snapshot {
		out[name] = map[string]interface{}{
			"status":          e.EffectiveStatus(now),
			"last_heartbeat":  e.LastHeartbeat,
			"buffer_usage":    e.BufferUsage,
			"total_processed": e.TotalProcessed,
			"error_count":     e.ErrorCount,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
