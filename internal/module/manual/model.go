package manual

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/ledger"
)

// Sources recorded on the transactions this package creates
const (
	SourceIncome  = "manual_income"
	SourceExpense = "manual_expense"
)

var (
	ErrInvalidAccountID     = errors.New("invalid account ID")
	ErrAccountNotLiquid     = errors.New("income must be received into a cash, bank or wallet account")
	ErrInvalidExpenseSource = errors.New("expense must be paid from a cash, bank, wallet or credit card account")
)

// IncomeRequest records money received from outside the user's books
type IncomeRequest struct {
	AccountID   uuid.UUID
	Amount      string // positive, at most 6 fractional digits
	Description string
	EffectiveAt time.Time
	CategoryID  *uuid.UUID
	Memo        *string
	Reference   *string
}

// ExpenseRequest records money paid to the outside world
type ExpenseRequest struct {
	AccountID   uuid.UUID
	Amount      string
	Description string
	EffectiveAt time.Time
	CategoryID  *uuid.UUID
	Memo        *string
	Reference   *string
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
