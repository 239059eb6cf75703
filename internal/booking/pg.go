package booking

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-travio/internal/store"
)

// PG runs settlement mutations inside a single Postgres transaction.
type PG struct {
	Pool *pgxpool.Pool
}

// InTx opens a transaction, hands a transaction-bound store to fn and commits
// when fn returns nil. Any error rolls the whole settlement back, including
// already-applied inventory decrements.
func (p PG) InTx(ctx context.Context, fn func(Mutations) error) error {
	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin settlement tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(store.New(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settlement tx: %w", err)
	}
	return nil
}
