// Package postgres implements the database repositories on top of PostgreSQL.
//
// Short code uniqueness is enforced here by the unique index on
// links.short_code: concurrent inserts of the same candidate resolve to
// exactly one success and one ErrShortCodeExists.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
}
