package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/internal/module/lending"
	"github.com/kislikjeka/moneyledger/internal/module/manual"
	"github.com/kislikjeka/moneyledger/internal/module/transfer"
	"github.com/kislikjeka/moneyledger/internal/platform/budget"
	"github.com/kislikjeka/moneyledger/internal/platform/category"
	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/internal/platform/fundamental"
	apperrors "github.com/kislikjeka/moneyledger/internal/shared/errors"
	"github.com/kislikjeka/moneyledger/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Entry *int   `json:"entry,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with an explicit status and code
func respondError(w http.ResponseWriter, statusCode int, code, message string) {
	respondJSON(w, ErrorResponse{Error: message, Code: code}, statusCode)
}

// errorMappings ties sentinel errors to a stable code. Order matters:
// the first match wins.
var errorMappings = []struct {
	errs []error
	code string
}{
	{
		errs: []error{
			ledger.ErrAccountNotFound, ledger.ErrTransactionNotFound, ledger.ErrCategoryNotFound,
			ledger.ErrEntryNotFound, ledger.ErrCurrencyNotFound, ledger.ErrFundamentalAccountNotFound,
			budget.ErrBudgetNotFound, budget.ErrPeriodNotFound, category.ErrParentNotFound,
			category.ErrBudgetNotFound, exchange.ErrSourceNotFound, exchange.ErrPairNotFound,
			exchange.ErrRateNotFound,
		},
		code: apperrors.ErrCodeNotFound,
	},
	{
		errs: []error{
			ledger.ErrAccountOwnershipMismatch, ledger.ErrCategoryOwnershipMismatch,
			budget.ErrUnauthorized, category.ErrUnauthorized,
		},
		code: apperrors.ErrCodeForbidden,
	},
	{
		errs: []error{
			ledger.ErrDuplicateAccountName, ledger.ErrAccountHasEntries, ledger.ErrFundamentalAccountDeletion,
			ledger.ErrFundamentalAccountImmutable, category.ErrDuplicateName, budget.ErrPeriodOverlap,
		},
		code: apperrors.ErrCodeConflict,
	},
	{
		errs: []error{ledger.ErrUnbalancedEntries},
		code: apperrors.ErrCodeLedgerUnbalanced,
	},
	{
		errs: []error{ledger.ErrInsufficientFunds},
		code: apperrors.ErrCodeInsufficientBalance,
	},
	{
		errs: []error{
			ledger.ErrInvalidUserID, ledger.ErrMissingAccountName, ledger.ErrAccountNameTooLong,
			ledger.ErrInvalidCurrencyCode, ledger.ErrInvalidAccountType, ledger.ErrInvalidAccountSubtype,
			ledger.ErrSubtypeTypeMismatch, ledger.ErrAccountArchived, ledger.ErrMissingDescription,
			ledger.ErrMissingEffectiveAt, ledger.ErrInvalidExchangeRate, ledger.ErrInsufficientEntries,
			ledger.ErrCurrencyMismatch, ledger.ErrAmountMustBeNonZero, ledger.ErrAmountTooPrecise,
			ledger.ErrMixedBudgetAssignments, ledger.ErrBudgetPeriodNotFound,
			money.ErrEmptyAmount, money.ErrInvalidAmount, money.ErrAmountNotPositive, money.ErrTooPrecise,
			manual.ErrInvalidAccountID, manual.ErrAccountNotLiquid, manual.ErrInvalidExpenseSource,
			transfer.ErrMissingSourceAccount, transfer.ErrMissingDestAccount, transfer.ErrSameAccountTransfer,
			transfer.ErrInvalidTransferAcct, transfer.ErrMissingReceivedAmount, transfer.ErrRateTooSmall,
			lending.ErrInvalidTargetAccount, lending.ErrContraNotLiquid, lending.ErrMissingAccount,
			category.ErrInvalidUserID, category.ErrMissingName, category.ErrNameTooLong, category.ErrInvalidType,
			category.ErrParentTypeMismatch, category.ErrCycle,
			budget.ErrInvalidUserID, budget.ErrMissingName, budget.ErrInvalidPeriod, budget.ErrInvalidAmount,
			budget.ErrInvalidCurrency, budget.ErrInvalidPeriodSpan,
			exchange.ErrUnsupportedPair, exchange.ErrInvalidPairKey,
		},
		code: apperrors.ErrCodeValidation,
	},
	{
		errs: []error{exchange.ErrMissingRequestedPairs, exchange.ErrNoQuotes, exchange.ErrInvalidRate},
		code: apperrors.ErrCodeUpstream,
	},
}

// writeError maps a service error to its HTTP representation. Unknown errors are
// logged and reported as internal errors without details.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var entryErr *ledger.EntryError
	if errors.As(err, &entryErr) {
		idx := entryErr.Index
		resp.Entry = &idx
	}

	if appErr := apperrors.GetAppError(err); appErr != nil {
		resp.Code = appErr.Code
		resp.Error = appErr.Message
		respondJSON(w, resp, apperrors.HTTPStatus(appErr.Code))
		return
	}

	for _, m := range errorMappings {
		for _, target := range m.errs {
			if errors.Is(err, target) {
				resp.Code = m.code
				respondJSON(w, resp, apperrors.HTTPStatus(m.code))
				return
			}
		}
	}

	if errors.Is(err, fundamental.ErrSetup) {
		log.WithContext(r.Context()).WithError(err).Error("fundamental account setup failed")
		respondError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "internal server error")
		return
	}

	var fetchErr *exchange.FetchError
	if errors.As(err, &fetchErr) {
		resp.Code = apperrors.ErrCodeUpstream
		respondJSON(w, resp, apperrors.HTTPStatus(apperrors.ErrCodeUpstream))
		return
	}

	log.WithContext(r.Context()).WithError(err).Error("request failed", "path", r.URL.Path)
	respondError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "internal server error")
}

// Request helpers

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid request body")
	}
	return nil
}

func userIDFrom(r *http.Request) (uuid.UUID, error) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, apperrors.Unauthorized("unauthorized")
	}
	return userID, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid "+name)
	}
	return id, nil
}

func parseUUIDPtr(s *string, field string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid "+field)
	}
	return &id, nil
}

func parseTime(s, field string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, field+" must be RFC3339")
	}
	return t, nil
}

func queryTime(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := parseTime(v, name)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt(r *http.Request, name string, def, max int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperrors.BadRequest(name + " must be a non-negative integer")
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
