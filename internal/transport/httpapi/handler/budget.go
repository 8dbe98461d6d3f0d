package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/platform/budget"
	apperrors "github.com/kislikjeka/moneyledger/internal/shared/errors"
	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

// BudgetServiceInterface defines the budget operations needed by BudgetHandler
type BudgetServiceInterface interface {
	CreateBudget(ctx context.Context, userID uuid.UUID, name string) (*budget.Budget, error)
	GetBudget(ctx context.Context, userID, budgetID uuid.UUID) (*budget.Budget, error)
	ListBudgets(ctx context.Context, userID uuid.UUID) ([]*budget.Budget, error)
	AddPeriod(ctx context.Context, userID, budgetID uuid.UUID, req budget.AddPeriodRequest) (*budget.Period, error)
	GenerateMonthlyPeriods(ctx context.Context, userID, budgetID uuid.UUID, from time.Time, count int, currency string, amount decimal.Decimal) ([]*budget.Period, error)
	ListPeriods(ctx context.Context, userID, budgetID uuid.UUID) ([]*budget.Period, error)
	Summary(ctx context.Context, userID, budgetID uuid.UUID, periodID *uuid.UUID) (*budget.Summary, error)
}

// BudgetHandler handles budget HTTP requests
type BudgetHandler struct {
	budgets BudgetServiceInterface
	logger  *logger.Logger
}

// NewBudgetHandler creates a new budget handler
func NewBudgetHandler(budgets BudgetServiceInterface, log *logger.Logger) *BudgetHandler {
	return &BudgetHandler{
		budgets: budgets,
		logger:  log.WithField("component", "http.budgets"),
	}
}

// CreateBudgetRequest represents the budget creation request
type CreateBudgetRequest struct {
	Name string `json:"name"`
}

// AddPeriodRequest represents one explicit budget period
type AddPeriodRequest struct {
	StartAt      string `json:"start_at"`
	EndAt        string `json:"end_at"`
	CurrencyCode string `json:"currency_code"`
	Amount       string `json:"amount"`
}

// GeneratePeriodsRequest creates consecutive monthly periods
type GeneratePeriodsRequest struct {
	From         string `json:"from"`
	Count        int    `json:"count"`
	CurrencyCode string `json:"currency_code"`
	Amount       string `json:"amount"`
}

// BudgetResponse represents a budget in API responses
type BudgetResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsArchived bool   `json:"is_archived"`
	CreatedAt  string `json:"created_at"`
}

// PeriodResponse represents a budget period
type PeriodResponse struct {
	ID           string `json:"id"`
	BudgetID     string `json:"budget_id"`
	StartAt      string `json:"start_at"`
	EndAt        string `json:"end_at"`
	CurrencyCode string `json:"currency_code"`
	Amount       string `json:"amount"`
}

// SummaryResponse is the cached state of one period
type SummaryResponse struct {
	Budget     BudgetResponse `json:"budget"`
	Period     PeriodResponse `json:"period"`
	Budgeted   string         `json:"budgeted"`
	Spent      string         `json:"spent"`
	Remaining  string         `json:"remaining"`
	ComputedAt *string        `json:"computed_at,omitempty"`
}

func toBudgetResponse(b *budget.Budget) BudgetResponse {
	return BudgetResponse{
		ID:         b.ID.String(),
		Name:       b.Name,
		IsArchived: b.IsArchived,
		CreatedAt:  formatTime(b.CreatedAt),
	}
}

func toPeriodResponse(p *budget.Period) PeriodResponse {
	return PeriodResponse{
		ID:           p.ID.String(),
		BudgetID:     p.BudgetID.String(),
		StartAt:      p.StartAt.UTC().Format(time.RFC3339Nano),
		EndAt:        p.EndAt.UTC().Format(time.RFC3339Nano),
		CurrencyCode: p.CurrencyCode,
		Amount:       money.FormatAmount(p.Amount),
	}
}

func parseBudgetAmount(s string) (decimal.Decimal, error) {
	d, err := money.Parse(s)
	if err != nil {
		return decimal.Zero, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid amount")
	}
	return d, nil
}

// CreateBudget handles POST /budgets
func (h *BudgetHandler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req CreateBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	b, err := h.budgets.CreateBudget(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toBudgetResponse(b), http.StatusCreated)
}

// ListBudgets handles GET /budgets
func (h *BudgetHandler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	list, err := h.budgets.ListBudgets(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]BudgetResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBudgetResponse(b))
	}
	respondJSON(w, out, http.StatusOK)
}

// GetBudget handles GET /budgets/{id}
func (h *BudgetHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	b, err := h.budgets.GetBudget(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toBudgetResponse(b), http.StatusOK)
}

// AddPeriod handles POST /budgets/{id}/periods
func (h *BudgetHandler) AddPeriod(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req AddPeriodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	in := budget.AddPeriodRequest{CurrencyCode: req.CurrencyCode}
	if in.StartAt, err = parseTime(req.StartAt, "start_at"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if in.EndAt, err = parseTime(req.EndAt, "end_at"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if in.Amount, err = parseBudgetAmount(req.Amount); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.budgets.AddPeriod(r.Context(), userID, id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toPeriodResponse(p), http.StatusCreated)
}

// GeneratePeriods handles POST /budgets/{id}/periods/monthly
func (h *BudgetHandler) GeneratePeriods(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req GeneratePeriodsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	from, err := parseTime(req.From, "from")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	amount, err := parseBudgetAmount(req.Amount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	periods, err := h.budgets.GenerateMonthlyPeriods(r.Context(), userID, id, from, req.Count, req.CurrencyCode, amount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]PeriodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, toPeriodResponse(p))
	}
	respondJSON(w, out, http.StatusCreated)
}

// ListPeriods handles GET /budgets/{id}/periods
func (h *BudgetHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	periods, err := h.budgets.ListPeriods(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]PeriodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, toPeriodResponse(p))
	}
	respondJSON(w, out, http.StatusOK)
}

// GetSummary handles GET /budgets/{id}/summary?period_id=
func (h *BudgetHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var periodID *uuid.UUID
	if v := r.URL.Query().Get("period_id"); v != "" {
		if periodID, err = parseUUIDPtr(&v, "period_id"); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	s, err := h.budgets.Summary(r.Context(), userID, id, periodID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := SummaryResponse{
		Budget:    toBudgetResponse(s.Budget),
		Period:    toPeriodResponse(s.Period),
		Budgeted:  money.FormatAmount(s.Budgeted),
		Spent:     money.FormatAmount(s.Spent),
		Remaining: money.FormatAmount(s.Remaining),
	}
	if !s.ComputedAt.IsZero() {
		resp.ComputedAt = formatTimePtr(&s.ComputedAt)
	}
	respondJSON(w, resp, http.StatusOK)
}
