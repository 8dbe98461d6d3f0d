package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactions are stored in context using txContextKey. Every repository of
// this package reads the same key, so writes through different repositories
// share one database transaction.
type ctxKey string

const txContextKey ctxKey = "postgres_tx"

// Postgres error codes mapped to domain errors
const (
	uniqueViolation    = "23505"
	checkViolation     = "23514"
	fkViolation        = "23503"
	exclusionViolation = "23P01"
)

type queryer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txManager carries the pool and the context-scoped transaction handling
type txManager struct {
	pool *pgxpool.Pool
}

// BeginTx starts a new database transaction and stores it in the context
func (m txManager) BeginTx(ctx context.Context) (context.Context, error) {
	if tx := getTxFromContext(ctx); tx != nil {
		return ctx, fmt.Errorf("transaction already in progress")
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return ctx, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return context.WithValue(ctx, txContextKey, tx), nil
}

// CommitTx commits the database transaction from the context
func (m txManager) CommitTx(ctx context.Context) error {
	tx := getTxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("no transaction in context")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// RollbackTx rolls back the database transaction from the context
func (m txManager) RollbackTx(ctx context.Context) error {
	tx := getTxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("no transaction in context")
	}

	if err := tx.Rollback(ctx); err != nil {
		// Ignore already rolled back or committed errors
		if errors.Is(err, pgx.ErrTxClosed) {
			return nil
		}
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

// getQueryer returns the transaction if one exists in context, otherwise returns the pool
func (m txManager) getQueryer(ctx context.Context) queryer {
	if tx := getTxFromContext(ctx); tx != nil {
		return tx
	}
	return m.pool
}

func getTxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// pgErrorCode returns the SQLSTATE of a Postgres error, or ""
func pgErrorCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}
