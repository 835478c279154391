package repository

import (
	"database/sql"
	"strconv"

	"github.com/medistock/medistock-backend/pkg/database"
	"github.com/medistock/medistock-backend/pkg/errors"
)

// mapDBError converts constraint violations into AppErrors and passes
// everything else through unchanged.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// requireAffected turns a zero-row UPDATE or DELETE into a not-found error.
func requireAffected(res sql.Result, resourceKey string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundWithKey(resourceKey)
	}
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
