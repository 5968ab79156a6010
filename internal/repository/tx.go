package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "event-booking-api/pkg/app_errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager runs fn inside one database transaction. fn's error rolls the
// transaction back; a nil return commits it.
type TxManager interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type PgxTxManager struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewTxManager(pool *pgxpool.Pool, lockTimeout time.Duration) TxManager {
	return &PgxTxManager{
		pool:        pool,
		lockTimeout: lockTimeout,
	}
}

func (m *PgxTxManager) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(ctx)

	// 等待行鎖超過上限時，Postgres 回傳 55P03
	if m.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", m.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return mapPgError(err)
		}
	}

	if err := fn(tx); err != nil {
		return mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgInvalidTextRepr      = "22P02"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

// mapPgError converts concurrency related Postgres failures into sentinels.
// Errors that are already sentinels pass through untouched.
func mapPgError(err error) error {
	switch pgErrorCode(err) {
	case pgLockNotAvailable:
		return fmt.Errorf("%w: %v", apperrors.ErrLockTimeout, err)
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	case pgCheckViolation:
		// available_seats 範圍約束被觸發
		return fmt.Errorf("%w: %v", apperrors.ErrInsufficientSeats, err)
	case pgInvalidTextRepr:
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return err
}
