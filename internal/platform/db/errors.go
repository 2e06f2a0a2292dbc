package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique-constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// MapError normalizes store errors into the shared taxonomy. Missing rows
// become ErrNotFound; timeouts, cancellations and transport failures become
// ErrStoreUnavailable so callers fail closed instead of guessing.
func MapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return shared.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return shared.ErrStoreUnavailable
	case IsUniqueViolation(err):
		return shared.ErrConflict
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return err
		}
		return shared.ErrStoreUnavailable
	}
}
