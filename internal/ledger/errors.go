package ledger

import (
	"errors"
	"fmt"
)

// Account errors
var (
	ErrInvalidUserID               = errors.New("invalid user ID")
	ErrMissingAccountName          = errors.New("account name is required")
	ErrAccountNameTooLong          = errors.New("account name exceeds 100 characters")
	ErrDuplicateAccountName        = errors.New("account name already exists for this user")
	ErrInvalidCurrencyCode         = errors.New("invalid currency code")
	ErrCurrencyNotFound            = errors.New("currency not found")
	ErrInvalidAccountType          = errors.New("invalid account type")
	ErrInvalidAccountSubtype       = errors.New("invalid account subtype")
	ErrSubtypeTypeMismatch         = errors.New("account subtype does not match account type")
	ErrAccountNotFound             = errors.New("account not found")
	ErrAccountOwnershipMismatch    = errors.New("account does not belong to user")
	ErrAccountArchived             = errors.New("account is archived")
	ErrAccountHasEntries           = errors.New("account has entries")
	ErrFundamentalAccountDeletion  = errors.New("fundamental accounts cannot be deleted")
	ErrFundamentalAccountImmutable = errors.New("fundamental accounts cannot be modified")
	ErrFundamentalAccountNotFound  = errors.New("fundamental account not found")
	ErrInsufficientFunds           = errors.New("insufficient funds")
)

// Transaction errors, listed in the order CreateTransaction checks them
var (
	ErrMissingDescription        = errors.New("transaction description is required")
	ErrMissingEffectiveAt        = errors.New("transaction effective date is required")
	ErrInvalidExchangeRate       = errors.New("exchange rate must be positive")
	ErrInsufficientEntries       = errors.New("transaction requires at least 2 entries")
	ErrCategoryNotFound          = errors.New("category not found")
	ErrCategoryOwnershipMismatch = errors.New("category does not belong to user")
	ErrCurrencyMismatch          = errors.New("entry currency does not match account currency")
	ErrAmountMustBeNonZero       = errors.New("entry amount must be non-zero")
	ErrAmountTooPrecise          = errors.New("entry amount exceeds 6 fractional digits")
	ErrUnbalancedEntries         = errors.New("transaction entries do not sum to zero")
	ErrMixedBudgetAssignments    = errors.New("entries reference categories of different budgets")
	ErrBudgetPeriodNotFound      = errors.New("no budget period covers the effective date")
	ErrTransactionNotFound       = errors.New("transaction not found")
	ErrEntryNotFound             = errors.New("entry not found in transaction")
)

// EntryError ties a validation failure to the entry that caused it
type EntryError struct {
	Index int
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

func entryErr(index int, err error) error {
	return &EntryError{Index: index, Err: err}
}

var failureReasons = []struct {
	err    error
	reason string
}{
	{ErrInsufficientEntries, "insufficient_entries"},
	{ErrAccountNotFound, "account_not_found"},
	{ErrAccountOwnershipMismatch, "account_ownership_mismatch"},
	{ErrAccountArchived, "account_archived"},
	{ErrCategoryNotFound, "category_not_found"},
	{ErrCategoryOwnershipMismatch, "category_ownership_mismatch"},
	{ErrCurrencyMismatch, "currency_mismatch"},
	{ErrAmountMustBeNonZero, "amount_zero"},
	{ErrAmountTooPrecise, "amount_too_precise"},
	{ErrUnbalancedEntries, "unbalanced"},
	{ErrMixedBudgetAssignments, "mixed_budgets"},
	{ErrBudgetPeriodNotFound, "budget_period_not_found"},
	{ErrMissingDescription, "missing_description"},
	{ErrMissingEffectiveAt, "missing_effective_at"},
	{ErrInvalidExchangeRate, "invalid_exchange_rate"},
}

// FailureReason returns a stable label for a validation error, used for metrics
func FailureReason(err error) string {
	for _, fr := range failureReasons {
		if errors.Is(err, fr.err) {
			return fr.reason
		}
	}
	return "other"
}
