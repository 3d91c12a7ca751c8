// Package database holds the hand-written query layer over pgx. Handlers and
// services depend on narrow interfaces satisfied by *Queries; multi-step
// mutations construct a Queries over a pgx.Tx via New.
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// scanner is the common subset of pgx.Row and pgx.Rows used by the row
// scanning helpers.
type scanner interface {
	Scan(dest ...any) error
}
