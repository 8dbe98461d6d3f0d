package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	apperrors "github.com/kislikjeka/moneyledger/internal/shared/errors"
	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

// AccountServiceInterface defines the account operations needed by AccountHandler
type AccountServiceInterface interface {
	CreateAccount(ctx context.Context, userID uuid.UUID, req ledger.CreateAccountRequest) (*ledger.Account, error)
	UpdateAccount(ctx context.Context, userID, accountID uuid.UUID, req ledger.UpdateAccountRequest) (*ledger.Account, error)
	DeleteAccount(ctx context.Context, userID, accountID uuid.UUID) error
	GetAccount(ctx context.Context, userID, accountID uuid.UUID) (*ledger.Account, error)
	ListAccounts(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, error)
	GetAccountBalance(ctx context.Context, userID, accountID uuid.UUID) (*ledger.AccountBalance, error)
	ListBalances(ctx context.Context, userID uuid.UUID) ([]*ledger.AccountBalance, error)
}

// AccountHandler handles account-related HTTP requests
type AccountHandler struct {
	accounts AccountServiceInterface
	logger   *logger.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts AccountServiceInterface, log *logger.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   log.WithField("component", "http.accounts"),
	}
}

// CreateAccountRequest represents the account creation request
type CreateAccountRequest struct {
	Name         string  `json:"name"`
	CurrencyCode string  `json:"currency_code"`
	Type         string  `json:"type"`
	Subtype      *string `json:"subtype,omitempty"`
}

// UpdateAccountRequest represents the account update request
type UpdateAccountRequest struct {
	Name         *string `json:"name,omitempty"`
	CurrencyCode *string `json:"currency_code,omitempty"`
	Subtype      *string `json:"subtype,omitempty"`
	IsArchived   *bool   `json:"is_archived,omitempty"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	CurrencyCode  string  `json:"currency_code"`
	Type          string  `json:"type"`
	Subtype       *string `json:"subtype,omitempty"`
	IsFundamental bool    `json:"is_fundamental"`
	IsArchived    bool    `json:"is_archived"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// BalanceResponse is the derived balance of one account
type BalanceResponse struct {
	AccountID    string `json:"account_id"`
	CurrencyCode string `json:"currency_code"`
	Balance      string `json:"balance"`
}

func toAccountResponse(a *ledger.Account) AccountResponse {
	resp := AccountResponse{
		ID:            a.ID.String(),
		Name:          a.Name,
		CurrencyCode:  a.CurrencyCode,
		Type:          string(a.Type),
		IsFundamental: a.IsFundamental,
		IsArchived:    a.IsArchived,
		CreatedAt:     formatTime(a.CreatedAt),
		UpdatedAt:     formatTime(a.UpdatedAt),
	}
	if a.Subtype != nil {
		s := string(*a.Subtype)
		resp.Subtype = &s
	}
	return resp
}

func toBalanceResponse(b *ledger.AccountBalance) BalanceResponse {
	return BalanceResponse{
		AccountID:    b.AccountID.String(),
		CurrencyCode: b.CurrencyCode,
		Balance:      money.FormatAmount(b.Balance),
	}
}

func subtypePtr(s *string) *ledger.AccountSubtype {
	if s == nil {
		return nil
	}
	st := ledger.AccountSubtype(strings.ToUpper(strings.TrimSpace(*s)))
	return &st
}

// CreateAccount handles POST /accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), userID, ledger.CreateAccountRequest{
		Name:         req.Name,
		CurrencyCode: req.CurrencyCode,
		Type:         ledger.AccountType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Subtype:      subtypePtr(req.Subtype),
	})
	if err != nil && account == nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("account created with failed hooks", "account_id", account.ID)
	}

	respondJSON(w, toAccountResponse(account), http.StatusCreated)
}

// ListAccounts handles GET /accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	filter := ledger.AccountFilter{
		UserID:             userID,
		IncludeArchived:    queryBool(r, "include_archived"),
		IncludeFundamental: queryBool(r, "include_fundamental"),
	}
	if t := r.URL.Query().Get("type"); t != "" {
		at := ledger.AccountType(strings.ToUpper(t))
		if !at.IsValid() {
			writeError(w, r, h.logger, apperrors.Validation("invalid account type"))
			return
		}
		filter.Type = &at
	}
	if c := r.URL.Query().Get("currency"); c != "" {
		c = strings.ToUpper(c)
		filter.CurrencyCode = &c
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	respondJSON(w, out, http.StatusOK)
}

// GetAccount handles GET /accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	accountID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), userID, accountID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toAccountResponse(account), http.StatusOK)
}

// UpdateAccount handles PATCH /accounts/{id}
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	accountID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req UpdateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	account, err := h.accounts.UpdateAccount(r.Context(), userID, accountID, ledger.UpdateAccountRequest{
		Name:         req.Name,
		CurrencyCode: req.CurrencyCode,
		Subtype:      subtypePtr(req.Subtype),
		IsArchived:   req.IsArchived,
	})
	if err != nil && account == nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("account updated with failed hooks", "account_id", account.ID)
	}

	respondJSON(w, toAccountResponse(account), http.StatusOK)
}

// DeleteAccount handles DELETE /accounts/{id}
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	accountID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), userID, accountID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBalance handles GET /accounts/{id}/balance
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	accountID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	balance, err := h.accounts.GetAccountBalance(r.Context(), userID, accountID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toBalanceResponse(balance), http.StatusOK)
}

// ListBalances handles GET /balances
func (h *AccountHandler) ListBalances(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	balances, err := h.accounts.ListBalances(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]BalanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, toBalanceResponse(b))
	}
	respondJSON(w, out, http.StatusOK)
}
