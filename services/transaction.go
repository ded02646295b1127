package services

import (
	"context"
	"fmt"

	"github.com/vinodhsukumarvictor/Church-Bible-App/repositories"
)

// RunInTx runs fn inside a transaction and returns its result. fn receives
// the transaction context; repository calls made with it join the
// transaction. The transaction commits when fn succeeds and rolls back when
// fn fails or panics.
func RunInTx[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(txCtx context.Context) (T, error)) (T, error) {
	var zero T

	tx, err := txMgr.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	result, err := fn(tx.Context())
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return zero, fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}
