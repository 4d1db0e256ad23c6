package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrNegativeStock = errors.New("stock would become negative")
	ErrStockOverflow = errors.New("stock would exceed int32 range")
	// ErrConflict помечает ошибки сериализации/дедлоки: транзакцию можно повторить.
	ErrConflict       = errors.New("transaction conflict")
	ErrDuplicate      = errors.New("duplicate key")
	ErrReferenced     = errors.New("foreign key violation")
	ErrCheckViolation = errors.New("check constraint violation")
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgNumericOutOfRange    = "22003"
)

// translate переводит ошибки драйвера postgres в ошибки репозитория.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrReferenced, pgErr.ConstraintName)
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", ErrCheckViolation, pgErr.ConstraintName)
	case pgNumericOutOfRange:
		return fmt.Errorf("%w: %s", ErrStockOverflow, pgErr.Message)
	}
	return err
}
