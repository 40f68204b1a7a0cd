package db

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsUniqueViolation reports a unique/primary key violation and the constraint that fired.
func IsUniqueViolation(err error) (constraint string, ok bool) {
	pgErr, ok := pgError(err)
	if !ok || pgErr.Code != pgerrcode.UniqueViolation {
		return "", false
	}
	return pgErr.ConstraintName, true
}

// IsForeignKeyViolation reports a foreign key violation and the constraint that fired.
func IsForeignKeyViolation(err error) (constraint string, ok bool) {
	pgErr, ok := pgError(err)
	if !ok || pgErr.Code != pgerrcode.ForeignKeyViolation {
		return "", false
	}
	return pgErr.ConstraintName, true
}

// IsRetryable is true for errors a fresh attempt of the same transaction can clear.
func IsRetryable(err error) bool {
	pgErr, ok := pgError(err)
	if !ok {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}
