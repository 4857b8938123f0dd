package infra

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolTransactor runs commands against a pgxpool.Pool, one transaction per
// call, via pgx.BeginTxFunc.
type PoolTransactor struct {
	Pool *pgxpool.Pool
}

// NewPoolTransactor wraps pool as a repository.Transactor.
func NewPoolTransactor(pool *pgxpool.Pool) *PoolTransactor {
	return &PoolTransactor{Pool: pool}
}

// WithTx runs fn inside a read-committed transaction, committing on a nil
// return and rolling back otherwise.
func (t *PoolTransactor) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, t.Pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}
