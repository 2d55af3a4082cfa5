package pgutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"nil error", nil, CodeUniqueViolation, false},
		{"sqlstate suffix", errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"), CodeUniqueViolation, true},
		{"bare code", errors.New("Error 23505 occurred"), CodeUniqueViolation, true},
		{"other code", errors.New("SQLSTATE 23503 foreign key violation"), CodeUniqueViolation, false},
		{"empty message", errors.New(""), CodeUniqueViolation, false},
		{"structured", &pgconn.PgError{Code: "23505"}, CodeUniqueViolation, true},
		{"structured other", &pgconn.PgError{Code: "23503"}, CodeUniqueViolation, false},
		{"wrapped structured", fmt.Errorf("insert schema: %w", &pgconn.PgError{Code: "40001"}), CodeSerializationFailure, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("hasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	if !IsUniqueViolation(&pgconn.PgError{Code: CodeUniqueViolation}) {
		t.Error("IsUniqueViolation")
	}
	if !IsSerializationFailure(&pgconn.PgError{Code: CodeSerializationFailure}) {
		t.Error("IsSerializationFailure")
	}
	if IsUniqueViolation(errors.New("timeout")) {
		t.Error("plain error should not match")
	}
}
