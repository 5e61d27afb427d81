package adapters

import (
	"context"
	"database/sql"
)

// DBAdapter is the minimal connection surface the ledger store needs. Every statement is
// fully interpolated by goqu, so no bind arguments are passed.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBRows is satisfied by *sql.Rows and *sqlx.Rows as they are.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult is satisfied by sql.Result as it is.
type DBResult interface {
	RowsAffected() (int64, error)
}

var (
	_ DBRows   = (*sql.Rows)(nil)
	_ DBResult = sql.Result(nil)
)
