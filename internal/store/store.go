// Package store provides database access methods for all folio entities.
// Each store struct wraps a *sql.DB and exposes typed query methods.
// Finders return (nil, nil) when no row matches.
package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate marks a write rejected by a unique constraint: a taken
// email or post slug.
var ErrDuplicate = errors.New("duplicate key")

const uniqueViolation = "23505"

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// wrapWrite annotates a failed INSERT or UPDATE with op and tags unique
// violations with ErrDuplicate.
func wrapWrite(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, ErrDuplicate, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}
