package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	apperrors "github.com/kislikjeka/moneyledger/internal/shared/errors"
	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

// LedgerServiceInterface defines the ledger operations needed by TransactionHandler
type LedgerServiceInterface interface {
	CreateTransaction(ctx context.Context, userID uuid.UUID, req ledger.CreateTransactionRequest) (*ledger.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, transactionID uuid.UUID, req ledger.UpdateTransactionRequest) (*ledger.Transaction, error)
	GetTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*ledger.Transaction, error)
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error)
}

// TransactionHandler handles transaction-related HTTP requests
type TransactionHandler struct {
	ledger LedgerServiceInterface
	logger *logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(ledgerService LedgerServiceInterface, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		ledger: ledgerService,
		logger: log.WithField("component", "http.transactions"),
	}
}

// EntryRequest is one leg of a raw transaction
type EntryRequest struct {
	AccountID    string  `json:"account_id"`
	Amount       string  `json:"amount"` // signed exact decimal
	CurrencyCode *string `json:"currency_code,omitempty"`
	Memo         *string `json:"memo,omitempty"`
	CategoryID   *string `json:"category_id,omitempty"`
}

// CreateTransactionRequest represents a raw balanced transaction
type CreateTransactionRequest struct {
	Description    string         `json:"description"`
	EffectiveAt    string         `json:"effective_at"` // RFC3339
	PostedAt       *string        `json:"posted_at,omitempty"`
	Reference      *string        `json:"reference,omitempty"`
	Source         *string        `json:"source,omitempty"`
	IdempotencyKey *string        `json:"idempotency_key,omitempty"`
	CurrencyCode   *string        `json:"currency_code,omitempty"`
	ExchangeRate   *string        `json:"exchange_rate,omitempty"`
	Entries        []EntryRequest `json:"entries"`
}

// UpdateTransactionRequest changes non-financial fields. EntryCategories maps an
// entry id to a category id; an empty string clears the category.
type UpdateTransactionRequest struct {
	Description     *string           `json:"description,omitempty"`
	EffectiveAt     *string           `json:"effective_at,omitempty"`
	Reference       *string           `json:"reference,omitempty"`
	EntryCategories map[string]string `json:"entry_categories,omitempty"`
}

// EntryResponse is one leg of a transaction in API responses
type EntryResponse struct {
	ID           string  `json:"id"`
	AccountID    string  `json:"account_id"`
	Amount       string  `json:"amount"`
	CurrencyCode string  `json:"currency_code"`
	Memo         *string `json:"memo,omitempty"`
	CategoryID   *string `json:"category_id,omitempty"`
}

// TransactionResponse represents a transaction with its entries
type TransactionResponse struct {
	ID             string          `json:"id"`
	Description    string          `json:"description"`
	EffectiveAt    string          `json:"effective_at"`
	PostedAt       *string         `json:"posted_at,omitempty"`
	Reference      *string         `json:"reference,omitempty"`
	Source         *string         `json:"source,omitempty"`
	ExchangeRate   *string         `json:"exchange_rate,omitempty"`
	CurrencyCode   *string         `json:"currency_code,omitempty"`
	BudgetPeriodID *string         `json:"budget_period_id,omitempty"`
	Entries        []EntryResponse `json:"entries"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

// TransactionListResponse represents a page of transactions
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

func toTransactionResponse(tx *ledger.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:             tx.ID.String(),
		Description:    tx.Description,
		EffectiveAt:    formatTime(tx.EffectiveAt),
		PostedAt:       formatTimePtr(tx.PostedAt),
		Reference:      tx.Reference,
		Source:         tx.Source,
		CurrencyCode:   tx.CurrencyCode,
		BudgetPeriodID: uuidString(tx.BudgetPeriodID),
		Entries:        make([]EntryResponse, 0, len(tx.Entries)),
		CreatedAt:      formatTime(tx.CreatedAt),
		UpdatedAt:      formatTime(tx.UpdatedAt),
	}
	if tx.ExchangeRate != nil {
		s := money.FormatRate(*tx.ExchangeRate)
		resp.ExchangeRate = &s
	}
	for _, e := range tx.Entries {
		resp.Entries = append(resp.Entries, EntryResponse{
			ID:           e.ID.String(),
			AccountID:    e.AccountID.String(),
			Amount:       money.FormatAmount(e.Amount),
			CurrencyCode: e.CurrencyCode,
			Memo:         e.Memo,
			CategoryID:   uuidString(e.CategoryID),
		})
	}
	return resp
}

// respondTransaction writes a committed transaction. A post-commit hook failure
// does not undo the write, so it is logged and the transaction is still returned.
func respondTransaction(w http.ResponseWriter, r *http.Request, log *logger.Logger, tx *ledger.Transaction, err error, status int) {
	if err != nil && tx == nil {
		writeError(w, r, log, err)
		return
	}
	if err != nil {
		log.WithContext(r.Context()).WithError(err).Warn("transaction committed with failed hooks", "transaction_id", tx.ID)
	}
	respondJSON(w, toTransactionResponse(tx), status)
}

// CreateTransaction handles POST /transactions
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req CreateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	in, err := req.toLedger()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.ledger.CreateTransaction(r.Context(), userID, in)
	respondTransaction(w, r, h.logger, tx, err, http.StatusCreated)
}

func (req *CreateTransactionRequest) toLedger() (ledger.CreateTransactionRequest, error) {
	effectiveAt, err := parseTime(req.EffectiveAt, "effective_at")
	if err != nil {
		return ledger.CreateTransactionRequest{}, err
	}

	out := ledger.CreateTransactionRequest{
		Description:    req.Description,
		EffectiveAt:    effectiveAt,
		Reference:      req.Reference,
		Source:         req.Source,
		IdempotencyKey: req.IdempotencyKey,
		CurrencyCode:   req.CurrencyCode,
		Entries:        make([]ledger.EntryRequest, 0, len(req.Entries)),
	}

	if req.PostedAt != nil {
		postedAt, err := parseTime(*req.PostedAt, "posted_at")
		if err != nil {
			return out, err
		}
		out.PostedAt = &postedAt
	}
	if req.ExchangeRate != nil {
		rate, err := decimal.NewFromString(*req.ExchangeRate)
		if err != nil {
			return out, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid exchange_rate")
		}
		out.ExchangeRate = &rate
	}

	for _, e := range req.Entries {
		accountID, err := uuid.Parse(e.AccountID)
		if err != nil {
			return out, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid account_id")
		}
		categoryID, err := parseUUIDPtr(e.CategoryID, "category_id")
		if err != nil {
			return out, err
		}
		out.Entries = append(out.Entries, ledger.EntryRequest{
			AccountID:    accountID,
			Amount:       e.Amount,
			CurrencyCode: e.CurrencyCode,
			Memo:         e.Memo,
			CategoryID:   categoryID,
		})
	}
	return out, nil
}

// GetTransaction handles GET /transactions/{id}
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	txID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.ledger.GetTransaction(r.Context(), userID, txID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toTransactionResponse(tx), http.StatusOK)
}

// ListTransactions handles GET /transactions
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	filter := ledger.TransactionFilter{UserID: userID}
	if filter.Limit, err = queryInt(r, "limit", 50, 500); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0, 0); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if filter.From, err = queryTime(r, "from"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if v := r.URL.Query().Get("account_id"); v != "" {
		if filter.AccountID, err = parseUUIDPtr(&v, "account_id"); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	txs, err := h.ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := TransactionListResponse{
		Transactions: make([]TransactionResponse, 0, len(txs)),
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(tx))
	}
	respondJSON(w, resp, http.StatusOK)
}

// UpdateTransaction handles PATCH /transactions/{id}
func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	txID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req UpdateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	in := ledger.UpdateTransactionRequest{
		Description: req.Description,
		Reference:   req.Reference,
	}
	if req.EffectiveAt != nil {
		t, err := parseTime(*req.EffectiveAt, "effective_at")
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		in.EffectiveAt = &t
	}
	if len(req.EntryCategories) > 0 {
		in.EntryCategories = make(map[uuid.UUID]*uuid.UUID, len(req.EntryCategories))
		for entry, cat := range req.EntryCategories {
			entryID, err := uuid.Parse(entry)
			if err != nil {
				writeError(w, r, h.logger, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid entry id"))
				return
			}
			categoryID, err := parseUUIDPtr(&cat, "category_id")
			if err != nil {
				writeError(w, r, h.logger, err)
				return
			}
			in.EntryCategories[entryID] = categoryID
		}
	}

	tx, err := h.ledger.UpdateTransaction(r.Context(), userID, txID, in)
	respondTransaction(w, r, h.logger, tx, err, http.StatusOK)
}
