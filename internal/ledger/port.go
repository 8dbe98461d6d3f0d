package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for ledger persistence operations
type Repository interface {
	// Currency operations
	GetCurrency(ctx context.Context, code string) (*Currency, error)
	ListCurrencies(ctx context.Context) ([]*Currency, error)

	// Account operations
	CreateAccount(ctx context.Context, account *Account) error
	UpdateAccount(ctx context.Context, account *Account) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	FindAccountByName(ctx context.Context, userID uuid.UUID, name string) (*Account, error)
	FindFundamentalAccount(ctx context.Context, userID uuid.UUID, currencyCode string, accountType AccountType) (*Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error)
	CountEntriesByAccount(ctx context.Context, accountID uuid.UUID) (int, error)

	// Transaction operations. Entries are written together with their transaction.
	CreateTransaction(ctx context.Context, tx *Transaction) error
	UpdateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)

	// Balance operations (derived from entries)
	GetAccountBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	ListBalances(ctx context.Context, userID uuid.UUID) ([]*AccountBalance, error)

	// Transaction management
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}

// CategoryRef is the part of a category the engine validates entries against
type CategoryRef struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	BudgetID *uuid.UUID
}

// CategoryLookup resolves categories referenced by entries.
// Implementations return ErrCategoryNotFound for unknown ids.
type CategoryLookup interface {
	LookupCategory(ctx context.Context, id uuid.UUID) (*CategoryRef, error)
}

// PeriodLookup finds the budget period whose range contains a moment.
// Implementations return ErrBudgetPeriodNotFound when none does.
type PeriodLookup interface {
	FindPeriodCovering(ctx context.Context, budgetID uuid.UUID, at time.Time) (uuid.UUID, error)
}

// Publisher delivers domain events after the triggering write is committed
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// AccountFilter narrows account listings. UserID is mandatory.
type AccountFilter struct {
	UserID             uuid.UUID
	Type               *AccountType
	CurrencyCode       *string
	IncludeArchived    bool
	IncludeFundamental bool
}

// TransactionFilter narrows transaction listings. UserID is mandatory.
type TransactionFilter struct {
	UserID    uuid.UUID
	AccountID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
