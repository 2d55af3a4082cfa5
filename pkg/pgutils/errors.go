package pgutils

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// Class 23: Integrity Constraint Violation
	CodeUniqueViolation = "23505"

	// Class 40: Transaction Rollback
	CodeSerializationFailure = "40001"
)

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint violation (23505).
func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

// IsSerializationFailure reports a serializable-isolation conflict (40001).
// Concurrent schema writers can hit this instead of a unique violation.
func IsSerializationFailure(err error) bool {
	return hasCode(err, CodeSerializationFailure)
}

// hasCode prefers the structured pgconn error and falls back to scanning the
// message for drivers that flatten it.
func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	errStr := err.Error()
	return len(errStr) > 0 && (strings.Contains(errStr, code) || strings.Contains(errStr, "SQLSTATE "+code))
}
