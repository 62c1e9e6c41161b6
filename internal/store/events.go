package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/flowcatalyst-checkweigher/supervisor/internal/common/repository"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/model"
)

// EventRepository persists StateEvent records. Shares only the pool
// accessor with MeasurementRepository.
type EventRepository struct {
	pool *Pool
}

// NewEventRepository builds a repository bound to pool.
func NewEventRepository(pool *Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// CreateSchema creates the events table if absent.
func (r *EventRepository) CreateSchema(ctx context.Context) error {
	ctx, cancel := r.pool.CommandContext(ctx)
	defer cancel()

	_, err := r.pool.DB().ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id SERIAL PRIMARY KEY,
			device_id TEXT NOT NULL,
			event_kind INT NOT NULL,
			reason INT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			duration INTERVAL NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("store: create events schema: %w", err)
	}

	_, err = r.pool.DB().ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_events_created_at
		ON events (created_at DESC)
	`)
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("store: create events index: %w", err)
	}
	return nil
}

func eventKindCode(k model.EventKind) int {
	if k == model.EventRun {
		return 1
	}
	return 0
}

// intervalLiteral renders d as a Postgres interval input literal
// ("N microseconds"). time.Duration has no registered pgtype codec for
// the interval wire format, so the value is passed as plain text and
// cast implicitly by the server against the target column, rather than
// risk an encode failure by binding a *time.Duration parameter directly.
func intervalLiteral(d time.Duration) string {
	return fmt.Sprintf("%d microseconds", d.Microseconds())
}

// InsertMany writes batch in a single multi-row insert.
func (r *EventRepository) InsertMany(ctx context.Context, batch []*model.StateEvent) error {
	if len(batch) == 0 {
		return nil
	}

	ctx, cancel := r.pool.CommandContext(ctx)
	defer cancel()

	return repository.InstrumentVoid(ctx, "events", "insert_many", func() error {
		var b strings.Builder
		b.WriteString(`INSERT INTO events
			(device_id, event_kind, reason, started_at, ended_at, duration)
			VALUES `)

		args := make([]interface{}, 0, len(batch)*6)
		for i, e := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			base := len(args)
			fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6)
			args = append(args,
				e.DeviceID, eventKindCode(e.Kind), e.Reason, e.StartedAt, e.EndedAt, intervalLiteral(e.Duration))
		}

		_, err := r.pool.DB().ExecContext(ctx, b.String(), args...)
		return err
	})
}

// EventQuery holds the optional filters recognised by GET /eventos.
type EventQuery struct {
	DeviceID      string
	Reason        *int16
	Day           *time.Time
	PeriodCentral *time.Time
	PeriodOffset  int
	Limit         int
}

// Find returns rows matching q, ordered by created_at desc.
func (r *EventRepository) Find(ctx context.Context, q EventQuery) ([]map[string]interface{}, error) {
	ctx, cancel := r.pool.CommandContext(ctx)
	defer cancel()

	var filters []Filter
	if q.DeviceID != "" {
		filters = append(filters, Filter{"device_id", q.DeviceID})
	}
	if q.Reason != nil {
		filters = append(filters, Filter{"reason", *q.Reason})
	}

	var clause string
	var args []interface{}
	switch {
	case q.PeriodCentral != nil:
		start, end := RangeDate(*q.PeriodCentral, q.PeriodOffset)
		clause, args = buildWhereRange(filters, "created_at", start, end)
	case q.Day != nil:
		start := time.Date(q.Day.Year(), q.Day.Month(), q.Day.Day(), 0, 0, 0, 0, q.Day.Location())
		end := start.Add(24 * time.Hour)
		clause, args = buildWhereRange(filters, "created_at", start, end)
	default:
		clause, args = buildWhere(filters)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, device_id, event_kind, reason, started_at, ended_at,
			EXTRACT(EPOCH FROM duration) AS duration_seconds, created_at
		FROM events
		%s
		ORDER BY created_at DESC
		LIMIT $%d
	`, clause, len(args))

	var rows *sql.Rows
	err := repository.InstrumentVoid(ctx, "events", "find", func() error {
		var qerr error
		rows, qerr = r.pool.DB().QueryContext(ctx, query, args...)
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("store: find events: %w", err)
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var (
			id                          int64
			deviceID                    string
			eventKind, reason           int64
			startedAt, endedAt, created time.Time
			durationSeconds             float64
		)
		if err := rows.Scan(&id, &deviceID, &eventKind, &reason, &startedAt, &endedAt, &durationSeconds, &created); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		duration := time.Duration(durationSeconds * float64(time.Second))
		out = append(out, map[string]interface{}{
			"id":         id,
			"device_id":  deviceID,
			"event_kind": eventKind,
			"reason":     reason,
			"started_at": startedAt,
			"ended_at":   endedAt,
			"duration":   duration.String(),
			"created_at": created,
		})
	}
	return out, rows.Err()
}
