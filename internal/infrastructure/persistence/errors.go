package persistence

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

const pqUniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// dbError оборачивает ошибку драйвера. sql.ErrNoRows превращается в notFound.
func dbError(err error, notFound error, message string) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Wrap(err, apperror.ErrCodeDatabaseError, message)
}
