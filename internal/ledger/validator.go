package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/pkg/money"
)

// validatedEntry is an entry request resolved against its account and category
type validatedEntry struct {
	account  *Account
	category *CategoryRef
	amount   decimal.Decimal
	currency string
	req      EntryRequest
}

// transactionValidator runs the ordered precondition checks of CreateTransaction.
// It only reads; nothing is written until every check passes.
type transactionValidator struct {
	repo       Repository
	categories CategoryLookup
	periods    PeriodLookup
}

func newTransactionValidator(repo Repository, categories CategoryLookup, periods PeriodLookup) *transactionValidator {
	return &transactionValidator{
		repo:       repo,
		categories: categories,
		periods:    periods,
	}
}

// validateHeader checks the request fields that need no lookups
func (v *transactionValidator) validateHeader(req *CreateTransactionRequest) error {
	if strings.TrimSpace(req.Description) == "" {
		return ErrMissingDescription
	}
	if req.EffectiveAt.IsZero() {
		return ErrMissingEffectiveAt
	}
	if req.ExchangeRate != nil && !req.ExchangeRate.IsPositive() {
		return ErrInvalidExchangeRate
	}
	if req.CurrencyCode != nil && !IsValidCurrencyCode(*req.CurrencyCode) {
		return ErrInvalidCurrencyCode
	}
	if len(req.Entries) < 2 {
		return ErrInsufficientEntries
	}
	return nil
}

// validate runs every check in order and returns the resolved entries and the
// budget period implied by their categories, if any
func (v *transactionValidator) validate(ctx context.Context, userID uuid.UUID, req *CreateTransactionRequest) ([]*validatedEntry, *uuid.UUID, error) {
	if err := v.validateHeader(req); err != nil {
		return nil, nil, err
	}

	entries := make([]*validatedEntry, len(req.Entries))
	for i, er := range req.Entries {
		entries[i] = &validatedEntry{req: er}
	}

	if err := v.resolveAccounts(ctx, userID, entries); err != nil {
		return nil, nil, err
	}

	if err := v.resolveCategories(ctx, userID, entries); err != nil {
		return nil, nil, err
	}

	if err := v.checkCurrencies(entries); err != nil {
		return nil, nil, err
	}

	if err := v.checkAmounts(entries); err != nil {
		return nil, nil, err
	}

	if err := v.checkBalance(entries); err != nil {
		return nil, nil, err
	}

	periodID, err := v.resolveBudgetPeriod(ctx, categoryRefs(entries), req.EffectiveAt)
	if err != nil {
		return nil, nil, err
	}

	return entries, periodID, nil
}

func (v *transactionValidator) resolveAccounts(ctx context.Context, userID uuid.UUID, entries []*validatedEntry) error {
	cache := make(map[uuid.UUID]*Account)
	for i, e := range entries {
		account, ok := cache[e.req.AccountID]
		if !ok {
			var err error
			account, err = v.repo.GetAccount(ctx, e.req.AccountID)
			if err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					return entryErr(i, ErrAccountNotFound)
				}
				return fmt.Errorf("failed to load account: %w", err)
			}
			cache[account.ID] = account
		}

		if account.UserID != userID {
			return entryErr(i, ErrAccountOwnershipMismatch)
		}
		if account.IsArchived {
			return entryErr(i, ErrAccountArchived)
		}
		e.account = account
	}
	return nil
}

func (v *transactionValidator) resolveCategories(ctx context.Context, userID uuid.UUID, entries []*validatedEntry) error {
	for i, e := range entries {
		if e.req.CategoryID == nil {
			continue
		}
		ref, err := v.lookupCategory(ctx, userID, *e.req.CategoryID)
		if err != nil {
			return entryErr(i, err)
		}
		e.category = ref
	}
	return nil
}

func (v *transactionValidator) lookupCategory(ctx context.Context, userID, categoryID uuid.UUID) (*CategoryRef, error) {
	if v.categories == nil {
		return nil, ErrCategoryNotFound
	}
	ref, err := v.categories.LookupCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if ref.UserID != userID {
		return nil, ErrCategoryOwnershipMismatch
	}
	return ref, nil
}

func (v *transactionValidator) checkCurrencies(entries []*validatedEntry) error {
	for i, e := range entries {
		e.currency = e.account.CurrencyCode
		if e.req.CurrencyCode == nil {
			continue
		}
		if strings.ToUpper(*e.req.CurrencyCode) != e.account.CurrencyCode {
			return entryErr(i, ErrCurrencyMismatch)
		}
	}
	return nil
}

func (v *transactionValidator) checkAmounts(entries []*validatedEntry) error {
	for i, e := range entries {
		amount, err := money.ParseAmount(e.req.Amount)
		if err != nil {
			if errors.Is(err, money.ErrTooPrecise) {
				return entryErr(i, ErrAmountTooPrecise)
			}
			return entryErr(i, err)
		}
		if amount.IsZero() {
			return entryErr(i, ErrAmountMustBeNonZero)
		}
		e.amount = amount
	}
	return nil
}

func (v *transactionValidator) checkBalance(entries []*validatedEntry) error {
	amounts := make([]decimal.Decimal, len(entries))
	for i, e := range entries {
		amounts[i] = e.amount
	}

	if total := money.Sum(amounts); !total.IsZero() {
		return fmt.Errorf("%w: sum=%s", ErrUnbalancedEntries, money.FormatAmount(total))
	}
	return nil
}

// resolveBudgetPeriod enforces the single-budget rule and finds the period
// covering the effective date
func (v *transactionValidator) resolveBudgetPeriod(ctx context.Context, refs []*CategoryRef, effectiveAt time.Time) (*uuid.UUID, error) {
	var budgetID *uuid.UUID
	for _, ref := range refs {
		if ref == nil || ref.BudgetID == nil {
			continue
		}
		if budgetID != nil && *budgetID != *ref.BudgetID {
			return nil, ErrMixedBudgetAssignments
		}
		id := *ref.BudgetID
		budgetID = &id
	}

	if budgetID == nil {
		return nil, nil
	}

	if v.periods == nil {
		return nil, ErrBudgetPeriodNotFound
	}

	periodID, err := v.periods.FindPeriodCovering(ctx, *budgetID, effectiveAt)
	if err != nil {
		return nil, err
	}
	return &periodID, nil
}

func categoryRefs(entries []*validatedEntry) []*CategoryRef {
	refs := make([]*CategoryRef, len(entries))
	for i, e := range entries {
		refs[i] = e.category
	}
	return refs
}
