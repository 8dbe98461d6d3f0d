package manual

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

// Handler builds income and expense transactions against the fundamental
// accounts of the account's currency
type Handler struct {
	ledger       TransactionCreator
	accounts     AccountReader
	fundamentals FundamentalResolver
	logger       *logger.Logger
}

// NewHandler creates a new manual transaction handler
func NewHandler(l TransactionCreator, accounts AccountReader, fundamentals FundamentalResolver, log *logger.Logger) *Handler {
	return &Handler{
		ledger:       l,
		accounts:     accounts,
		fundamentals: fundamentals,
		logger:       log.WithField("component", "manual"),
	}
}

// Income posts [+amount on the account, -amount on External Income].
// The category, if any, goes on the income leg.
func (h *Handler) Income(ctx context.Context, userID uuid.UUID, req IncomeRequest) (*ledger.Transaction, error) {
	if req.AccountID == uuid.Nil {
		return nil, ErrInvalidAccountID
	}
	amount, err := money.ParsePositive(req.Amount)
	if err != nil {
		return nil, err
	}

	account, err := h.accounts.GetAccount(ctx, userID, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.IsLiquid() {
		return nil, ErrAccountNotLiquid
	}

	income, err := h.fundamentals.Resolve(ctx, userID, account.CurrencyCode, ledger.AccountTypeIncome)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve income account: %w", err)
	}

	value := money.FormatAmount(amount)
	source := SourceIncome

	h.logger.Debug("recording income", "account_id", account.ID, "currency", account.CurrencyCode)

	return h.ledger.CreateTransaction(ctx, userID, ledger.CreateTransactionRequest{
		Description: req.Description,
		EffectiveAt: req.EffectiveAt,
		Reference:   req.Reference,
		Source:      &source,
		Entries: []ledger.EntryRequest{
			{AccountID: account.ID, Amount: value, Memo: req.Memo},
			{AccountID: income.ID, Amount: money.Invert(value), CategoryID: req.CategoryID},
		},
	})
}

// Expense posts [-amount on the account, +amount on External Expense].
// Liquid accounts must hold at least the amount; credit cards may go further
// into debt.
func (h *Handler) Expense(ctx context.Context, userID uuid.UUID, req ExpenseRequest) (*ledger.Transaction, error) {
	if req.AccountID == uuid.Nil {
		return nil, ErrInvalidAccountID
	}
	amount, err := money.ParsePositive(req.Amount)
	if err != nil {
		return nil, err
	}

	account, err := h.accounts.GetAccount(ctx, userID, req.AccountID)
	if err != nil {
		return nil, err
	}

	switch {
	case account.IsLiquid():
		funds, err := h.accounts.AvailableFunds(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get available funds: %w", err)
		}
		if funds.LessThan(amount) {
			return nil, fmt.Errorf("%w: available %s, requested %s",
				ledger.ErrInsufficientFunds, money.FormatAmount(funds), money.FormatAmount(amount))
		}
	case account.HasSubtype(ledger.SubtypeCreditCard):
	default:
		return nil, ErrInvalidExpenseSource
	}

	expense, err := h.fundamentals.Resolve(ctx, userID, account.CurrencyCode, ledger.AccountTypeExpense)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve expense account: %w", err)
	}

	value := money.FormatAmount(amount)
	source := SourceExpense

	h.logger.Debug("recording expense", "account_id", account.ID, "currency", account.CurrencyCode)

	return h.ledger.CreateTransaction(ctx, userID, ledger.CreateTransactionRequest{
		Description: req.Description,
		EffectiveAt: req.EffectiveAt,
		Reference:   req.Reference,
		Source:      &source,
		Entries: []ledger.EntryRequest{
			{AccountID: account.ID, Amount: money.Invert(value), Memo: req.Memo},
			{AccountID: expense.ID, Amount: value, CategoryID: req.CategoryID},
		},
	})
}
