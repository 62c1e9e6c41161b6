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

// MeasurementRepository persists Measurement records. It shares only the
// pool accessor with EventRepository — no inheritance hierarchy, per
// spec.md §9.
type MeasurementRepository struct {
	pool *Pool
}

// NewMeasurementRepository builds a repository bound to pool.
func NewMeasurementRepository(pool *Pool) *MeasurementRepository {
	return &MeasurementRepository{pool: pool}
}

// CreateSchema creates the measurements table if absent. Idempotent
// across repeated calls and across concurrent callers: a unique-violation
// raised by a racing CREATE is swallowed as benign.
func (r *MeasurementRepository) CreateSchema(ctx context.Context) error {
	ctx, cancel := r.pool.CommandContext(ctx)
	defer cancel()

	_, err := r.pool.DB().ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS measurements (
			id SERIAL PRIMARY KEY,
			device_id TEXT NOT NULL,
			weight INT NOT NULL,
			classification INT NOT NULL DEFAULT 0,
			ppm INT NOT NULL DEFAULT 0,
			reason INT NOT NULL DEFAULT 0,
			operation_id BIGINT NOT NULL DEFAULT 0,
			operation_type INT NOT NULL DEFAULT 0,
			"timestamp" TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("store: create measurements schema: %w", err)
	}

	_, err = r.pool.DB().ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_measurements_timestamp
		ON measurements ("timestamp" DESC)
	`)
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("store: create measurements index: %w", err)
	}
	return nil
}

// InsertMany writes batch in a single multi-row insert under one
// connection acquired from the pool. An empty batch is a no-op.
func (r *MeasurementRepository) InsertMany(ctx context.Context, batch []*model.Measurement) error {
	if len(batch) == 0 {
		return nil
	}

	ctx, cancel := r.pool.CommandContext(ctx)
	defer cancel()

	return repository.InstrumentVoid(ctx, "measurements", "insert_many", func() error {
		var b strings.Builder
		b.WriteString(`INSERT INTO measurements
			(device_id, weight, classification, ppm, reason, operation_id, operation_type, "timestamp")
			VALUES `)

		args := make([]interface{}, 0, len(batch)*8)
		for i, m := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			base := len(args)
			fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
			args = append(args,
				m.DeviceID, m.Weight, m.Classification, m.PPM, m.Reason, m.OperationID, m.OperationType, m.Timestamp)
		}

		_, err := r.pool.DB().ExecContext(ctx, b.String(), args...)
		return err
	})
}

// MeasurementQuery holds the optional filters recognised by GET /pesagens.
type MeasurementQuery struct {
	DeviceID       string
	Classification *int16
	Day            *time.Time
	PeriodCentral  *time.Time
	PeriodOffset   int
	Limit          int
}

// Find returns rows matching q, ordered by timestamp desc, as generic
// key-value maps.
func (r *MeasurementRepository) Find(ctx context.Context, q MeasurementQuery) ([]map[string]interface{}, error) {
	ctx, cancel := r.pool.CommandContext(ctx)
	defer cancel()

	var filters []Filter
	if q.DeviceID != "" {
		filters = append(filters, Filter{"device_id", q.DeviceID})
	}
	if q.Classification != nil {
		filters = append(filters, Filter{"classification", *q.Classification})
	}

	var clause string
	var args []interface{}
	switch {
	case q.PeriodCentral != nil:
		start, end := RangeDate(*q.PeriodCentral, q.PeriodOffset)
		clause, args = buildWhereRange(filters, `"timestamp"`, start, end)
	case q.Day != nil:
		start := time.Date(q.Day.Year(), q.Day.Month(), q.Day.Day(), 0, 0, 0, 0, q.Day.Location())
		end := start.Add(24 * time.Hour)
		clause, args = buildWhereRange(filters, `"timestamp"`, start, end)
	default:
		clause, args = buildWhere(filters)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, device_id, weight, classification, ppm, reason, operation_id, operation_type, "timestamp"
		FROM measurements
		%s
		ORDER BY "timestamp" DESC
		LIMIT $%d
	`, clause, len(args))

	var rows *sql.Rows
	err := repository.InstrumentVoid(ctx, "measurements", "find", func() error {
		var qerr error
		rows, qerr = r.pool.DB().QueryContext(ctx, query, args...)
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("store: find measurements: %w", err)
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var (
			id                                                 int64
			deviceID                                           string
			weight, classification, ppm, reason, operationType int64
			operationID                                        int64
			ts                                                 time.Time
		)
		if err := rows.Scan(&id, &deviceID, &weight, &classification, &ppm, &reason, &operationID, &operationType, &ts); err != nil {
			return nil, fmt.Errorf("store: scan measurement: %w", err)
		}
		out = append(out, map[string]interface{}{
			"id":              id,
			"device_id":       deviceID,
			"weight":          weight,
			"classification":  classification,
			"ppm":             ppm,
			"reason":          reason,
			"operation_id":    operationID,
			"operation_type":  operationType,
			"timestamp":       ts,
		})
	}
	return out, rows.Err()
}
