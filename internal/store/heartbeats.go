package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flowcatalyst-checkweigher/supervisor/internal/common/repository"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/monitor"
)

// HeartbeatRepository persists the supervisor monitor's snapshot so the
// api process can serve GET /hhh without reading the collector
// process's memory — the two share state only through the database.
type HeartbeatRepository struct {
	pool *Pool
}

// NewHeartbeatRepository builds a repository bound to pool.
func NewHeartbeatRepository(pool *Pool) *HeartbeatRepository {
	return &HeartbeatRepository{pool: pool}
}

// CreateSchema creates the heartbeats table if absent.
func (r *HeartbeatRepository) CreateSchema(ctx context.Context) error {
	ctx, cancel := r.pool.CommandContext(ctx)
	defer cancel()

	_, err := r.pool.DB().ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS heartbeats (
			name TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			last_heartbeat TIMESTAMPTZ NOT NULL,
			buffer_usage INT NOT NULL DEFAULT 0,
			total_processed BIGINT NOT NULL DEFAULT 0,
			error_count BIGINT NOT NULL DEFAULT 0
		)
	`)
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("store: create heartbeats schema: %w", err)
	}
	return nil
}

// UpsertSnapshot writes every entry in snapshot, replacing any prior row
// for the same name. Called periodically by the collector process.
func (r *HeartbeatRepository) UpsertSnapshot(ctx context.Context, snapshot map[string]monitor.Entry) error {
	if len(snapshot) == 0 {
		return nil
	}

	ctx, cancel := r.pool.CommandContext(ctx)
	defer cancel()

	return repository.InstrumentVoid(ctx, "heartbeats", "upsert_snapshot", func() error {
		for _, e := range snapshot {
			_, err := r.pool.DB().ExecContext(ctx, `
				INSERT INTO heartbeats (name, status, last_heartbeat, buffer_usage, total_processed, error_count)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (name) DO UPDATE SET
					status = EXCLUDED.status,
					last_heartbeat = EXCLUDED.last_heartbeat,
					buffer_usage = EXCLUDED.buffer_usage,
					total_processed = EXCLUDED.total_processed,
					error_count = EXCLUDED.error_count
			`, e.Name, string(e.Status), e.LastHeartbeat, e.BufferUsage, e.TotalProcessed, e.ErrorCount)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// FindAll returns every recorded heartbeat, keyed by name, with its
// stored status; staleness (Entry.EffectiveStatus) is left to the caller.
func (r *HeartbeatRepository) FindAll(ctx context.Context) (map[string]monitor.Entry, error) {
	ctx, cancel := r.pool.CommandContext(ctx)
	defer cancel()

	var rows *sql.Rows
	err := repository.InstrumentVoid(ctx, "heartbeats", "find_all", func() error {
		var qerr error
		rows, qerr = r.pool.DB().QueryContext(ctx, `
			SELECT name, status, last_heartbeat, buffer_usage, total_processed, error_count
			FROM heartbeats
		`)
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("store: find heartbeats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]monitor.Entry)
	for rows.Next() {
		var (
			name, status              string
			lastHeartbeat             time.Time
			bufferUsage               int
			totalProcessed, errorCount int64
		)
		if err := rows.Scan(&name, &status, &lastHeartbeat, &bufferUsage, &totalProcessed, &errorCount); err != nil {
			return nil, fmt.Errorf("store: scan heartbeat: %w", err)
		}
		out[name] = monitor.Entry{
			Name:           name,
			Status:         monitor.Status(status),
			LastHeartbeat:  lastHeartbeat,
			BufferUsage:    bufferUsage,
			TotalProcessed: totalProcessed,
			ErrorCount:     errorCount,
		}
	}
	return out, rows.Err()
}
