package bookkeeper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Executor is an interface that *sql.DB, *sql.Conn and *sql.Tx implement.
type Executor interface {
	ExecContext(
		ctx context.Context, query string, args ...any,
	) (sql.Result, error)
}

// Conn is the connection handle every bookkeeping operation runs against.
// It is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Conn interface {
	Executor
	QueryContext(
		ctx context.Context, query string, args ...any,
	) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txBeginner is implemented by handles that can open their own transaction.
// A *sql.Tx does not implement it, so work handed a transaction joins it.
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// inTransaction runs fn inside a transaction. If conn is already a
// transaction, fn runs in it and the caller owns commit and rollback.
func inTransaction(
	ctx context.Context, conn Conn, fn func(tx Conn) error,
) error {
	beginner, ok := conn.(txBeginner)
	if !ok {
		return fn(conn)
	}

	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		return rollback(tx, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rollback rolls back tx and returns err, joined with any rollback failure.
func rollback(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		return errors.Join(
			err, fmt.Errorf("also error rolling back transaction: %w", rbErr),
		)
	}
	return err
}

// queryStrings runs a single-column query and collects the values.
func queryStrings(
	ctx context.Context, conn Conn, query string, args ...any,
) ([]string, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
