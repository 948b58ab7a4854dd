package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"gallery/entity"
)

const (
	postgresForeignKeyViolationErrorCode  = "23503"
	postgresUniqueValueViolationErrorCode = "23505"
	postgresSerializationFailureErrorCode = "40001"
	postgresDeadlockDetectedErrorCode     = "40P01"
	postgresLockNotAvailableErrorCode     = "55P03"
)

// UpdateInTx runs fn in a transaction with the given isolation level.
// The transaction is committed when fn succeeds and rolled back when it fails or panics.
// Lock timeouts, deadlocks and serialization failures are reported as entity.ErrConflict.
func UpdateInTx(
	ctx context.Context,
	db *sqlx.DB,
	isolation sql.IsolationLevel,
	fn func(ctx context.Context, tx *sqlx.Tx) error,
) (err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, rollbackErr)
			}
			err = classifyError(err)
			return
		}

		if commitErr := tx.Commit(); commitErr != nil {
			err = classifyError(fmt.Errorf("could not commit transaction: %w", commitErr))
		}
	}()

	return fn(ctx, tx)
}

func classifyError(err error) error {
	if errors.Is(err, entity.ErrConflict) {
		return err
	}

	var postgresError *pq.Error
	if !errors.As(err, &postgresError) {
		return err
	}

	switch postgresError.Code {
	case postgresSerializationFailureErrorCode, postgresDeadlockDetectedErrorCode, postgresLockNotAvailableErrorCode:
		return fmt.Errorf("%w: %w", entity.ErrConflict, err)
	default:
		return err
	}
}

func isPostgresError(err error, code pq.ErrorCode) bool {
	var postgresError *pq.Error
	return errors.As(err, &postgresError) && postgresError.Code == code
}
