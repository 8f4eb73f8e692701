package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgDuplicateKeyCode         = "23505"
	pgSerializationFailureCode = "40001"
	pgLockNotAvailableCode     = "55P03"
)

// MapError translates database errors to domain errors.
// sql.ErrNoRows maps to notFoundErr; unique violations (23505), serialization
// failures (40001) and NOWAIT lock failures (55P03) map to conflictErr.
// Other errors are returned unchanged.
func MapError(err error, notFoundErr, conflictErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	if code := PgCode(err); code != "" {
		switch code {
		case pgDuplicateKeyCode, pgSerializationFailureCode, pgLockNotAvailableCode:
			return conflictErr
		}
	}

	return err
}

// PgCode returns the PostgreSQL SQLSTATE of err, or "" if err is not a server error.
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgDuplicateKeyCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
