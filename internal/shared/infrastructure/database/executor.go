package database

import (
	"context"
	"database/sql"
)

// Row abstracts pgx.Row and *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows abstracts pgx.Rows and *sql.Rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result abstracts the outcome of an Exec.
type Result interface {
	RowsAffected() (int64, error)
}

// Executor runs statements against a connection or a transaction.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Transaction is an Executor that can be finished.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is a pooled handle that can open transactions.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
	Ping(ctx context.Context) error
	Driver() Driver
}

// On returns the executor for ctx (transaction first, then conn) wrapped so
// that queries written with ? placeholders run on either driver.
func On(ctx context.Context, conn Connection) Executor {
	return &reboundExecutor{
		exec:   ExecutorFromContext(ctx, conn),
		driver: conn.Driver(),
	}
}

type reboundExecutor struct {
	exec   Executor
	driver Driver
}

func (e *reboundExecutor) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return e.exec.Exec(ctx, Rebind(e.driver, query), args...)
}

func (e *reboundExecutor) QueryRow(ctx context.Context, query string, args ...any) Row {
	return e.exec.QueryRow(ctx, Rebind(e.driver, query), args...)
}

func (e *reboundExecutor) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return e.exec.Query(ctx, Rebind(e.driver, query), args...)
}

// WrapSQLResult adapts sql.Result.
func WrapSQLResult(r sql.Result) Result {
	return r
}

// WrapSQLRows adapts *sql.Rows.
func WrapSQLRows(r *sql.Rows) Rows {
	return r
}
