package lending

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/ledger"
)

// Kind names one of the four loan movements
type Kind string

const (
	KindLending          Kind = "lending"
	KindLendingRepayment Kind = "lending_repayment"
	KindDebt             Kind = "debt"
	KindDebtPayment      Kind = "debt_payment"
)

var (
	ErrInvalidTargetAccount = errors.New("target account has the wrong subtype for this movement")
	ErrContraNotLiquid      = errors.New("contra account must be a cash, bank or wallet account")
	ErrMissingAccount       = errors.New("target and contra account IDs are required")
)

// Request moves money between a loan account (the target) and a liquid
// account (the contra)
type Request struct {
	TargetAccountID uuid.UUID
	ContraAccountID uuid.UUID
	Amount          string // positive, at most 6 fractional digits
	Description     string
	EffectiveAt     time.Time
	Memo            *string
	Reference       *string
}

// movement describes the target subtype and which leg carries the positive amount
type movement struct {
	target         ledger.AccountSubtype
	targetPositive bool
}

var movements = map[Kind]movement{
	KindLending:          {target: ledger.SubtypeLoanReceivable, targetPositive: true},
	KindLendingRepayment: {target: ledger.SubtypeLoanReceivable, targetPositive: false},
	KindDebt:             {target: ledger.SubtypeLoanPayable, targetPositive: false},
	KindDebtPayment:      {target: ledger.SubtypeLoanPayable, targetPositive: true},
}

// TransactionCreator is the ledger engine
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, userID uuid.UUID, req ledger.CreateTransactionRequest) (*ledger.Transaction, error)
}

// AccountReader loads owner-scoped accounts
type AccountReader interface {
	GetAccount(ctx context.Context, userID, accountID uuid.UUID) (*ledger.Account, error)
}
