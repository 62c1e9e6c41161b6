// Package store implements the connection pool (C9) and the two
// repositories (C8) over a PostgreSQL-compatible database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	minConns          = 5
	maxConns          = 20
	maxQueriesPerConn = 1000
	acquireTimeout    = 30 * time.Second
	commandTimeout    = 60 * time.Second
)

// Pool wraps a lazily-initialised *sql.DB shared by both repositories.
type Pool struct {
	db *sql.DB
}

// Open opens the pool against dsn and applies the sizing policy from
// spec.md §4.9. The connection itself is lazy — database/sql does not
// dial until first use — but pool limits are configured up front.
func Open(dsn string) (*Pool, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)
	// database/sql has no direct "max queries per connection" knob; the
	// closest equivalent is recycling each connection after a bounded
	// lifetime, approximating asyncpg's max_queries setting without a
	// custom wrapper around every query.
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Pool{db: db}, nil
}

// Acquire returns a context bounded by the pool's acquisition timeout.
// No repository in this package calls it: their statements are bounded
// only by CommandContext's per-command timeout.
func (p *Pool) Acquire(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, acquireTimeout)
}

// CommandContext returns a context bounded by the per-command timeout.
func (p *Pool) CommandContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, commandTimeout)
}

// DB exposes the underlying handle for repository construction.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Ping verifies connectivity; used by the api process's /health check.
func (p *Pool) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}

// Close releases all pooled connections on process shutdown.
func (p *Pool) Close() error {
	return p.db.Close()
}
