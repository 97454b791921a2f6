package domain

import (
	"context"
	"database/sql"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so repository methods can
// run inside or outside an explicit transaction. The in-memory store passes
// a nil Querier and ignores it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxManager owns the transaction boundary. WithinTx runs fn in a single
// commit unit: if fn returns an error, nothing it wrote is durably committed.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error
	// Querier returns a handle for reads outside any transaction.
	Querier() Querier
}
