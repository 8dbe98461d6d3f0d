package ledger

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType classifies where value resides or how it is categorized
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeEquity    AccountType = "EQUITY"
)

// IsValid checks if the account type is one of the known types
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeIncome, AccountTypeExpense, AccountTypeEquity:
		return true
	}
	return false
}

// AccountSubtype refines asset and liability accounts
type AccountSubtype string

const (
	SubtypeCash           AccountSubtype = "CASH"
	SubtypeBank           AccountSubtype = "BANK"
	SubtypeWallet         AccountSubtype = "WALLET"
	SubtypeLoanReceivable AccountSubtype = "LOAN_RECEIVABLE"
	SubtypeInvestment     AccountSubtype = "INVESTMENT"
	SubtypeLoanPayable    AccountSubtype = "LOAN_PAYABLE"
	SubtypeCreditCard     AccountSubtype = "CREDIT_CARD"
)

var subtypeTypes = map[AccountSubtype]AccountType{
	SubtypeCash:           AccountTypeAsset,
	SubtypeBank:           AccountTypeAsset,
	SubtypeWallet:         AccountTypeAsset,
	SubtypeLoanReceivable: AccountTypeAsset,
	SubtypeInvestment:     AccountTypeAsset,
	SubtypeLoanPayable:    AccountTypeLiability,
	SubtypeCreditCard:     AccountTypeLiability,
}

// IsValid checks if the subtype is known
func (s AccountSubtype) IsValid() bool {
	_, ok := subtypeTypes[s]
	return ok
}

// Type returns the single account type this subtype belongs to
func (s AccountSubtype) Type() AccountType {
	return subtypeTypes[s]
}

// IsLiquid is true for directly spendable funds: CASH, BANK and WALLET
func (s AccountSubtype) IsLiquid() bool {
	return s == SubtypeCash || s == SubtypeBank || s == SubtypeWallet
}

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// IsValidCurrencyCode checks the 3 upper-case letter ISO-4217 shape
func IsValidCurrencyCode(code string) bool {
	return currencyCodePattern.MatchString(code)
}

// Currency is a registered currency a user may hold accounts in
type Currency struct {
	Code     string
	Name     string
	Decimals int
}

// Account identifies a place value can reside or be categorized
type Account struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Name          string
	CurrencyCode  string
	Type          AccountType
	Subtype       *AccountSubtype
	IsFundamental bool
	IsArchived    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const maxAccountNameLength = 100

// Validate checks the account invariants
func (a *Account) Validate() error {
	if a.UserID == uuid.Nil {
		return ErrInvalidUserID
	}

	if strings.TrimSpace(a.Name) == "" {
		return ErrMissingAccountName
	}

	if len(a.Name) > maxAccountNameLength {
		return ErrAccountNameTooLong
	}

	if !IsValidCurrencyCode(a.CurrencyCode) {
		return ErrInvalidCurrencyCode
	}

	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}

	if a.Subtype != nil {
		if !a.Subtype.IsValid() {
			return ErrInvalidAccountSubtype
		}
		if a.Subtype.Type() != a.Type {
			return ErrSubtypeTypeMismatch
		}
	}

	return nil
}

// HasSubtype reports whether the account carries the given subtype
func (a *Account) HasSubtype(s AccountSubtype) bool {
	return a.Subtype != nil && *a.Subtype == s
}

// IsLiquid reports whether the account is a CASH, BANK or WALLET asset
func (a *Account) IsLiquid() bool {
	return a.Subtype != nil && a.Subtype.IsLiquid()
}

// Transaction is an atomic financial event made of balanced entries
type Transaction struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Description    string
	EffectiveAt    time.Time
	PostedAt       *time.Time
	Reference      *string
	Source         *string
	IdempotencyKey *string
	ExchangeRate   *decimal.Decimal
	CurrencyCode   *string
	BudgetPeriodID *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Entries        []*Entry
}

// Total returns the exact sum of all entry amounts
func (t *Transaction) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range t.Entries {
		total = total.Add(e.Amount)
	}
	return total
}

// IsBalanced reports whether the entries sum to exactly zero
func (t *Transaction) IsBalanced() bool {
	return t.Total().IsZero()
}

// Entry is one signed leg of a transaction against one account
type Entry struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	Amount        decimal.Decimal
	CurrencyCode  string
	Memo          *string
	CategoryID    *uuid.UUID
	CreatedAt     time.Time
}

// AccountBalance is the balance derived from all entries of an account
type AccountBalance struct {
	AccountID    uuid.UUID
	CurrencyCode string
	Balance      decimal.Decimal
}
