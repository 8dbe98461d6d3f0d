package transfer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

// Handler builds transfers between a user's own accounts
type Handler struct {
	ledger       TransactionCreator
	accounts     AccountReader
	fundamentals FundamentalResolver
	logger       *logger.Logger
}

// NewHandler creates a new transfer handler
func NewHandler(l TransactionCreator, accounts AccountReader, fundamentals FundamentalResolver, log *logger.Logger) *Handler {
	return &Handler{
		ledger:       l,
		accounts:     accounts,
		fundamentals: fundamentals,
		logger:       log.WithField("component", "transfer"),
	}
}

// Transfer posts a same-currency move as two entries:
//
//	[-amount on from, +amount on to]
//
// Across currencies each currency leg balances on its own, bridged through
// the fundamental accounts:
//
//	[-amount on from, +amount on External Expense(from currency),
//	 -received on External Income(to currency), +received on to]
//
// and the implied rate received/amount is recorded on the transaction.
func (h *Handler) Transfer(ctx context.Context, userID uuid.UUID, req Request) (*ledger.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	amount, err := money.ParsePositive(req.Amount)
	if err != nil {
		return nil, err
	}

	from, err := h.accounts.GetAccount(ctx, userID, req.FromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := h.accounts.GetAccount(ctx, userID, req.ToAccountID)
	if err != nil {
		return nil, err
	}
	if !transferable(from) || !transferable(to) {
		return nil, ErrInvalidTransferAcct
	}

	if from.IsLiquid() {
		funds, err := h.accounts.AvailableFunds(ctx, from.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get available funds: %w", err)
		}
		if funds.LessThan(amount) {
			return nil, fmt.Errorf("%w: available %s, requested %s",
				ledger.ErrInsufficientFunds, money.FormatAmount(funds), money.FormatAmount(amount))
		}
	}

	source := Source
	out := money.FormatAmount(amount)
	txReq := ledger.CreateTransactionRequest{
		Description: req.Description,
		EffectiveAt: req.EffectiveAt,
		Reference:   req.Reference,
		Source:      &source,
	}

	if from.CurrencyCode == to.CurrencyCode {
		txReq.Entries = []ledger.EntryRequest{
			{AccountID: from.ID, Amount: money.Invert(out), Memo: req.Memo},
			{AccountID: to.ID, Amount: out, Memo: req.Memo},
		}
		return h.ledger.CreateTransaction(ctx, userID, txReq)
	}

	if req.ReceivedAmount == "" {
		return nil, ErrMissingReceivedAmount
	}
	received, err := money.ParsePositive(req.ReceivedAmount)
	if err != nil {
		return nil, fmt.Errorf("received amount: %w", err)
	}

	expense, err := h.fundamentals.Resolve(ctx, userID, from.CurrencyCode, ledger.AccountTypeExpense)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve expense account: %w", err)
	}
	income, err := h.fundamentals.Resolve(ctx, userID, to.CurrencyCode, ledger.AccountTypeIncome)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve income account: %w", err)
	}

	in := money.FormatAmount(received)
	rate := impliedRate(amount, received)
	if !rate.IsPositive() {
		return nil, ErrRateTooSmall
	}
	currency := from.CurrencyCode
	txReq.ExchangeRate = &rate
	txReq.CurrencyCode = &currency
	txReq.Entries = []ledger.EntryRequest{
		{AccountID: from.ID, Amount: money.Invert(out), Memo: req.Memo},
		{AccountID: expense.ID, Amount: out},
		{AccountID: income.ID, Amount: money.Invert(in)},
		{AccountID: to.ID, Amount: in, Memo: req.Memo},
	}

	h.logger.Debug("cross-currency transfer",
		"from_currency", from.CurrencyCode,
		"to_currency", to.CurrencyCode,
		"rate", money.FormatRate(rate))

	return h.ledger.CreateTransaction(ctx, userID, txReq)
}

func transferable(a *ledger.Account) bool {
	return a.IsLiquid() || a.HasSubtype(ledger.SubtypeCreditCard)
}

// impliedRate is units of the target currency per unit of the source currency,
// rounded to RateScale digits
func impliedRate(sent, received decimal.Decimal) decimal.Decimal {
	return received.DivRound(sent, money.RateScale)
}
