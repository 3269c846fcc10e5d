package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxTxKey struct{}

// PgxTxInfo carries the pgx transaction through the context. Owned marks
// the unit of work that opened it; nested units join without ownership.
type PgxTxInfo struct {
	Tx    pgx.Tx
	Owned bool
}

// WithPgxTx stores the transaction in the context.
func WithPgxTx(ctx context.Context, tx pgx.Tx, owned bool) context.Context {
	return context.WithValue(ctx, pgxTxKey{}, PgxTxInfo{Tx: tx, Owned: owned})
}

// PgxTxInfoFromContext extracts the transaction from the context.
func PgxTxInfoFromContext(ctx context.Context) (PgxTxInfo, bool) {
	info, ok := ctx.Value(pgxTxKey{}).(PgxTxInfo)
	if !ok || info.Tx == nil {
		return PgxTxInfo{}, false
	}
	return info, true
}

// PgxQuerier abstracts *pgxpool.Pool and pgx.Tx so repositories run the
// same statements inside and outside a unit of work.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgxExecutor returns the context transaction when present, otherwise
// the pool.
func PgxExecutor(ctx context.Context, pool *pgxpool.Pool) PgxQuerier {
	if info, ok := PgxTxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return pool
}
