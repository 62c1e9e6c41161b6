package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolationCode is the Postgres SQLSTATE for a unique-constraint
// violation.
const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation, swallowed during idempotent schema bootstrap per spec.md
// §4.8. pgx/v5 surfaces driver errors as *pgconn.PgError, so that is
// checked first; a substring fallback on the error text covers errors
// that never reach the driver as a *pgconn.PgError (e.g. a wrapped or
// stubbed error in a test).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}

	msg := err.Error()
	return strings.Contains(msg, uniqueViolationCode) || strings.Contains(msg, "already exists")
}
