package db

import (
	"context"
	"database/sql"
)

// Querier is the subset of *sql.DB the repositories use. It is also
// satisfied by circuitbreaker.DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
