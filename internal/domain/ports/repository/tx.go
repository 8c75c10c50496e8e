package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Concrete type is infra-defined
// (pgx.Tx for Postgres). Repositories accept nil for the non-transactional
// path and fall back to their pool.
type Tx interface{}

// NoTX is passed where no transaction is in flight.
var NoTX Tx

// TransactionManager executes a function inside a database transaction,
// passing the handle down so repositories in the callback share it. Keeps
// use-case signatures free of storage types beyond this small port.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
