package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/ledger"
)

// Source recorded on transfer transactions
const Source = "transfer"

// Request moves value between two of the user's own accounts.
// ReceivedAmount is required when the accounts hold different currencies and
// ignored otherwise.
type Request struct {
	FromAccountID  uuid.UUID
	ToAccountID    uuid.UUID
	Amount         string
	ReceivedAmount string
	Description    string
	EffectiveAt    time.Time
	Memo           *string
	Reference      *string
}

// Validate checks the fields that need no lookups
func (r *Request) Validate() error {
	if r.FromAccountID == uuid.Nil {
		return ErrMissingSourceAccount
	}
	if r.ToAccountID == uuid.Nil {
		return ErrMissingDestAccount
	}
	if r.FromAccountID == r.ToAccountID {
		return ErrSameAccountTransfer
	}
	return nil
}

// TransactionCreator is the ledger engine
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, userID uuid.UUID, req ledger.CreateTransactionRequest) (*ledger.Transaction, error)
}

// AccountReader loads owner-scoped accounts and their balances
type AccountReader interface {
	GetAccount(ctx context.Context, userID, accountID uuid.UUID) (*ledger.Account, error)
	AvailableFunds(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

// FundamentalResolver returns the system account for a (user, currency, type)
type FundamentalResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, currencyCode string, accountType ledger.AccountType) (*ledger.Account, error)
}
