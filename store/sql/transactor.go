package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/lippelima5/repolead-sub000/core"
)

type txContextKey struct{}

// BunTransactor runs a function inside one bun transaction and threads the
// transaction through the context, so every store call made inside the
// function joins it.
type BunTransactor struct {
	db *bun.DB
}

func NewBunTransactor(db *bun.DB) (*BunTransactor, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &BunTransactor{db: db}, nil
}

func (t *BunTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if t == nil || t.db == nil {
		return fmt.Errorf("sqlstore: transactor is not configured")
	}
	if _, ok := ctx.Value(txContextKey{}).(bun.Tx); ok {
		// Already inside a transaction; join it instead of nesting.
		return fn(ctx)
	}
	return t.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// conn returns the ambient transaction when one is in flight, the bare
// connection otherwise.
func conn(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := ctx.Value(txContextKey{}).(bun.Tx); ok {
		return tx
	}
	return db
}

var _ core.Transactor = (*BunTransactor)(nil)
