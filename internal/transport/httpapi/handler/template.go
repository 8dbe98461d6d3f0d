package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/internal/module/lending"
	"github.com/kislikjeka/moneyledger/internal/module/manual"
	"github.com/kislikjeka/moneyledger/internal/module/transfer"
	apperrors "github.com/kislikjeka/moneyledger/internal/shared/errors"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

// ManualTemplates records income and expenses
type ManualTemplates interface {
	Income(ctx context.Context, userID uuid.UUID, req manual.IncomeRequest) (*ledger.Transaction, error)
	Expense(ctx context.Context, userID uuid.UUID, req manual.ExpenseRequest) (*ledger.Transaction, error)
}

// TransferTemplate moves value between the user's accounts
type TransferTemplate interface {
	Transfer(ctx context.Context, userID uuid.UUID, req transfer.Request) (*ledger.Transaction, error)
}

// LendingTemplates records loan movements
type LendingTemplates interface {
	Register(ctx context.Context, userID uuid.UUID, kind lending.Kind, req lending.Request) (*ledger.Transaction, error)
}

// TemplateHandler exposes the transaction templates
type TemplateHandler struct {
	manual   ManualTemplates
	transfer TransferTemplate
	lending  LendingTemplates
	logger   *logger.Logger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(m ManualTemplates, t TransferTemplate, l LendingTemplates, log *logger.Logger) *TemplateHandler {
	return &TemplateHandler{
		manual:   m,
		transfer: t,
		lending:  l,
		logger:   log.WithField("component", "http.templates"),
	}
}

// CashFlowRequest is the body of the income and expense templates
type CashFlowRequest struct {
	AccountID   string  `json:"account_id"`
	Amount      string  `json:"amount"`
	Description string  `json:"description"`
	EffectiveAt string  `json:"effective_at"`
	CategoryID  *string `json:"category_id,omitempty"`
	Memo        *string `json:"memo,omitempty"`
	Reference   *string `json:"reference,omitempty"`
}

// TransferRequest is the body of the transfer template
type TransferRequest struct {
	FromAccountID  string  `json:"from_account_id"`
	ToAccountID    string  `json:"to_account_id"`
	Amount         string  `json:"amount"`
	ReceivedAmount string  `json:"received_amount,omitempty"`
	Description    string  `json:"description"`
	EffectiveAt    string  `json:"effective_at"`
	Memo           *string `json:"memo,omitempty"`
	Reference      *string `json:"reference,omitempty"`
}

// LendingRequest is the body of the lending and debt templates
type LendingRequest struct {
	TargetAccountID string  `json:"target_account_id"`
	ContraAccountID string  `json:"contra_account_id"`
	Amount          string  `json:"amount"`
	Description     string  `json:"description"`
	EffectiveAt     string  `json:"effective_at"`
	Memo            *string `json:"memo,omitempty"`
	Reference       *string `json:"reference,omitempty"`
}

func (req *CashFlowRequest) parse() (accountID uuid.UUID, categoryID *uuid.UUID, err error) {
	if accountID, err = uuid.Parse(req.AccountID); err != nil {
		return uuid.Nil, nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid account_id")
	}
	categoryID, err = parseUUIDPtr(req.CategoryID, "category_id")
	return accountID, categoryID, err
}

// Income handles POST /transactions/income
func (h *TemplateHandler) Income(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req CashFlowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	accountID, categoryID, err := req.parse()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	effectiveAt, err := parseTime(req.EffectiveAt, "effective_at")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.manual.Income(r.Context(), userID, manual.IncomeRequest{
		AccountID:   accountID,
		Amount:      req.Amount,
		Description: req.Description,
		EffectiveAt: effectiveAt,
		CategoryID:  categoryID,
		Memo:        req.Memo,
		Reference:   req.Reference,
	})
	respondTransaction(w, r, h.logger, tx, err, http.StatusCreated)
}

// Expense handles POST /transactions/expense
func (h *TemplateHandler) Expense(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req CashFlowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	accountID, categoryID, err := req.parse()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	effectiveAt, err := parseTime(req.EffectiveAt, "effective_at")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.manual.Expense(r.Context(), userID, manual.ExpenseRequest{
		AccountID:   accountID,
		Amount:      req.Amount,
		Description: req.Description,
		EffectiveAt: effectiveAt,
		CategoryID:  categoryID,
		Memo:        req.Memo,
		Reference:   req.Reference,
	})
	respondTransaction(w, r, h.logger, tx, err, http.StatusCreated)
}

// Transfer handles POST /transactions/transfer
func (h *TemplateHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	from, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		writeError(w, r, h.logger, transfer.ErrMissingSourceAccount)
		return
	}
	to, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		writeError(w, r, h.logger, transfer.ErrMissingDestAccount)
		return
	}
	effectiveAt, err := parseTime(req.EffectiveAt, "effective_at")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.transfer.Transfer(r.Context(), userID, transfer.Request{
		FromAccountID:  from,
		ToAccountID:    to,
		Amount:         req.Amount,
		ReceivedAmount: req.ReceivedAmount,
		Description:    req.Description,
		EffectiveAt:    effectiveAt,
		Memo:           req.Memo,
		Reference:      req.Reference,
	})
	respondTransaction(w, r, h.logger, tx, err, http.StatusCreated)
}

// Lending handles POST /transactions/{kind} for lending, lending_repayment,
// debt and debt_payment
func (h *TemplateHandler) Lending(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	kind := lending.Kind(chi.URLParam(r, "kind"))

	var req LendingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	target, err := uuid.Parse(req.TargetAccountID)
	if err != nil {
		writeError(w, r, h.logger, lending.ErrMissingAccount)
		return
	}
	contra, err := uuid.Parse(req.ContraAccountID)
	if err != nil {
		writeError(w, r, h.logger, lending.ErrMissingAccount)
		return
	}
	effectiveAt, err := parseTime(req.EffectiveAt, "effective_at")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.lending.Register(r.Context(), userID, kind, lending.Request{
		TargetAccountID: target,
		ContraAccountID: contra,
		Amount:          req.Amount,
		Description:     req.Description,
		EffectiveAt:     effectiveAt,
		Memo:            req.Memo,
		Reference:       req.Reference,
	})
	respondTransaction(w, r, h.logger, tx, err, http.StatusCreated)
}
