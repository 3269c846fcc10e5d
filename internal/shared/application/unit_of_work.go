// Package application holds contracts shared by the application services.
package application

import (
	"context"
	"fmt"
)

// UnitOfWork scopes a group of repository writes to one transaction.
// Begin returns a context carrying the transaction; repositories pick it
// up from there, so a call record, its contact stage advance, and its
// outbox messages commit or roll back together.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// WithUnitOfWork runs fn inside a transaction. An error from fn rolls
// the transaction back and is returned unwrapped so callers can match
// sentinel errors.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) error) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}

	if err := uow.Commit(txCtx); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}
