package ledger

import (
	"context"
	"fmt"
)

// transactionCommitter runs ledger writes inside one database transaction
type transactionCommitter struct {
	repo Repository
}

func newTransactionCommitter(repo Repository) *transactionCommitter {
	return &transactionCommitter{repo: repo}
}

// commit runs write in a database transaction; any error rolls everything back
func (c *transactionCommitter) commit(ctx context.Context, write func(txCtx context.Context) error) error {
	txCtx, err := c.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// The write failed; a rollback error adds nothing
			_ = c.repo.RollbackTx(txCtx)
		}
	}()

	if err := write(txCtx); err != nil {
		return err
	}

	if err := c.repo.CommitTx(txCtx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	committed = true
	return nil
}
