package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor over the pgx pool. Services
// use it to commit a transaction write and a subscription period advance
// as one unit.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a Transactor on the shared pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin opens a database transaction. The caller owns Commit/Rollback.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
