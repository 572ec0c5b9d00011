package services

import (
	"context"
	"database/sql"
	"fmt"
)

// TransactionFunc represents a function that operates within a database transaction
type TransactionFunc func(*sql.Tx) error

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// WithTransaction executes a function within a database transaction.
// It commits when fn returns nil and rolls back otherwise; fn's error is returned unchanged.
func WithTransaction(ctx context.Context, db *sql.DB, fn TransactionFunc) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return WrapDatabaseError(ErrTypeConnection, "failed to begin transaction", err)
	}

	// Ensure transaction is always closed
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("failed to rollback transaction: %v (original error: %w)", rollbackErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return WrapDatabaseError(ErrTypeConnection, "failed to commit transaction", err)
	}

	return nil
}
