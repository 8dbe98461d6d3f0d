package lending

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

// Handler registers loans given and taken, and their repayments
type Handler struct {
	ledger   TransactionCreator
	accounts AccountReader
	logger   *logger.Logger
}

// NewHandler creates a new lending handler
func NewHandler(l TransactionCreator, accounts AccountReader, log *logger.Logger) *Handler {
	return &Handler{
		ledger:   l,
		accounts: accounts,
		logger:   log.WithField("component", "lending"),
	}
}

// RegisterLending records money lent: [-amount on contra, +amount on a LOAN_RECEIVABLE target]
func (h *Handler) RegisterLending(ctx context.Context, userID uuid.UUID, req Request) (*ledger.Transaction, error) {
	return h.register(ctx, userID, KindLending, req)
}

// RegisterLendingRepayment records a borrower paying back: [+amount on contra, -amount on the receivable]
func (h *Handler) RegisterLendingRepayment(ctx context.Context, userID uuid.UUID, req Request) (*ledger.Transaction, error) {
	return h.register(ctx, userID, KindLendingRepayment, req)
}

// RegisterDebt records money borrowed: [+amount on contra, -amount on a LOAN_PAYABLE target]
func (h *Handler) RegisterDebt(ctx context.Context, userID uuid.UUID, req Request) (*ledger.Transaction, error) {
	return h.register(ctx, userID, KindDebt, req)
}

// RegisterDebtPayment records paying a lender back: [-amount on contra, +amount on the payable]
func (h *Handler) RegisterDebtPayment(ctx context.Context, userID uuid.UUID, req Request) (*ledger.Transaction, error) {
	return h.register(ctx, userID, KindDebtPayment, req)
}

// Register dispatches on kind
func (h *Handler) Register(ctx context.Context, userID uuid.UUID, kind Kind, req Request) (*ledger.Transaction, error) {
	if _, ok := movements[kind]; !ok {
		return nil, fmt.Errorf("unknown lending movement %q", kind)
	}
	return h.register(ctx, userID, kind, req)
}

func (h *Handler) register(ctx context.Context, userID uuid.UUID, kind Kind, req Request) (*ledger.Transaction, error) {
	m := movements[kind]

	if req.TargetAccountID == uuid.Nil || req.ContraAccountID == uuid.Nil {
		return nil, ErrMissingAccount
	}
	amount, err := money.ParsePositive(req.Amount)
	if err != nil {
		return nil, err
	}

	target, err := h.accounts.GetAccount(ctx, userID, req.TargetAccountID)
	if err != nil {
		return nil, err
	}
	if !target.HasSubtype(m.target) {
		return nil, fmt.Errorf("%w: %s requires %s", ErrInvalidTargetAccount, kind, m.target)
	}

	contra, err := h.accounts.GetAccount(ctx, userID, req.ContraAccountID)
	if err != nil {
		return nil, err
	}
	if !contra.IsLiquid() {
		return nil, ErrContraNotLiquid
	}

	if target.CurrencyCode != contra.CurrencyCode {
		return nil, fmt.Errorf("%w: target %s, contra %s",
			ledger.ErrCurrencyMismatch, target.CurrencyCode, contra.CurrencyCode)
	}

	value := money.FormatAmount(amount)
	targetAmount, contraAmount := value, money.Invert(value)
	if !m.targetPositive {
		targetAmount, contraAmount = contraAmount, targetAmount
	}

	source := string(kind)

	h.logger.Debug("registering loan movement", "kind", kind, "target_id", target.ID, "contra_id", contra.ID)

	return h.ledger.CreateTransaction(ctx, userID, ledger.CreateTransactionRequest{
		Description: req.Description,
		EffectiveAt: req.EffectiveAt,
		Reference:   req.Reference,
		Source:      &source,
		Entries: []ledger.EntryRequest{
			{AccountID: contra.ID, Amount: contraAmount, Memo: req.Memo},
			{AccountID: target.ID, Amount: targetAmount, Memo: req.Memo},
		},
	})
}
