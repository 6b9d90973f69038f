package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function inside a database transaction,
// passing the tx handle via the opaque Tx argument.
//
// Use-case interfaces stay clean of storage types; repository methods that
// accept a Tx detect it implementation-side and bind their statements to it.
// Repositories MUST accept NoTX (nil) and fall back to the pool.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
