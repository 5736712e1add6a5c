package postgres

import (
	"database/sql"

	"github.com/lib/pq"

	"meridian/pkg/errors"
)

// isUniqueViolation reports whether err is a postgres unique constraint
// violation (code 23505)
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// checkAffected converts a zero-row update into ErrNotFound
func checkAffected(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrap(errors.ErrNotFound, msg)
	}
	return nil
}

// checkGuarded converts a zero-row conditional update into ErrInvalidState.
// Used by transitions whose WHERE clause carries the state guard.
func checkGuarded(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrap(errors.ErrInvalidState, msg)
	}
	return nil
}
