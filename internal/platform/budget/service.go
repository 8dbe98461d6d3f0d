package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/ledger"
)

// AddPeriodRequest describes one budget period
type AddPeriodRequest struct {
	StartAt      time.Time
	EndAt        time.Time
	CurrencyCode string
	Amount       decimal.Decimal
}

// Service handles budgets, their periods and cached aggregates
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new budget service
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// SetClock overrides the time source used to pick the current period
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateBudget persists a new budget for the user
func (s *Service) CreateBudget(ctx context.Context, userID uuid.UUID, name string) (*Budget, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingName
	}

	now := s.now().UTC()
	b := &Budget{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create budget: %w", err)
	}
	return b, nil
}

// GetBudget returns a budget owned by the user
func (s *Service) GetBudget(ctx context.Context, userID, budgetID uuid.UUID) (*Budget, error) {
	b, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrUnauthorized
	}
	return b, nil
}

// ListBudgets returns the user's budgets
func (s *Service) ListBudgets(ctx context.Context, userID uuid.UUID) ([]*Budget, error) {
	return s.repo.ListBudgets(ctx, userID)
}

// AddPeriod appends a period; periods of one budget never overlap
func (s *Service) AddPeriod(ctx context.Context, userID, budgetID uuid.UUID, req AddPeriodRequest) (*Period, error) {
	if _, err := s.GetBudget(ctx, userID, budgetID); err != nil {
		return nil, err
	}

	p, err := newPeriod(budgetID, req, s.now())
	if err != nil {
		return nil, err
	}

	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	existing, err := s.repo.ListPeriods(txCtx, budgetID)
	if err != nil {
		_ = s.repo.RollbackTx(txCtx)
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	for _, e := range existing {
		if p.Overlaps(e) {
			_ = s.repo.RollbackTx(txCtx)
			return nil, ErrPeriodOverlap
		}
	}

	// CreatePeriod re-checks under the budget row lock held by txCtx
	if err := s.repo.CreatePeriod(txCtx, p); err != nil {
		_ = s.repo.RollbackTx(txCtx)
		return nil, fmt.Errorf("failed to create period: %w", err)
	}
	if err := s.repo.CommitTx(txCtx); err != nil {
		return nil, fmt.Errorf("failed to commit period: %w", err)
	}
	return p, nil
}

// GenerateMonthlyPeriods creates count consecutive calendar-month periods
// starting with the month containing from. All periods are written atomically.
func (s *Service) GenerateMonthlyPeriods(ctx context.Context, userID, budgetID uuid.UUID, from time.Time, count int, currency string, amount decimal.Decimal) ([]*Period, error) {
	if count < 1 || count > 120 {
		return nil, ErrInvalidPeriodSpan
	}
	if _, err := s.GetBudget(ctx, userID, budgetID); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListPeriods(ctx, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}

	from = from.UTC()
	start := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	periods := make([]*Period, 0, count)
	for i := 0; i < count; i++ {
		next := start.AddDate(0, 1, 0)
		p, err := newPeriod(budgetID, AddPeriodRequest{
			StartAt:      start,
			EndAt:        next.Add(-time.Microsecond),
			CurrencyCode: currency,
			Amount:       amount,
		}, s.now())
		if err != nil {
			return nil, err
		}
		for _, e := range existing {
			if p.Overlaps(e) {
				return nil, ErrPeriodOverlap
			}
		}
		periods = append(periods, p)
		start = next
	}

	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, p := range periods {
		if err := s.repo.CreatePeriod(txCtx, p); err != nil {
			_ = s.repo.RollbackTx(txCtx)
			return nil, fmt.Errorf("failed to create period: %w", err)
		}
	}
	if err := s.repo.CommitTx(txCtx); err != nil {
		return nil, fmt.Errorf("failed to commit periods: %w", err)
	}

	return periods, nil
}

// ListPeriods returns the periods of a budget owned by the user
func (s *Service) ListPeriods(ctx context.Context, userID, budgetID uuid.UUID) ([]*Period, error) {
	if _, err := s.GetBudget(ctx, userID, budgetID); err != nil {
		return nil, err
	}
	return s.repo.ListPeriods(ctx, budgetID)
}

// FindPeriodCovering implements ledger.PeriodLookup
func (s *Service) FindPeriodCovering(ctx context.Context, budgetID uuid.UUID, at time.Time) (uuid.UUID, error) {
	p, err := s.repo.FindPeriodCovering(ctx, budgetID, at.UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to find budget period: %w", err)
	}
	if p == nil {
		return uuid.Nil, ledger.ErrBudgetPeriodNotFound
	}
	return p.ID, nil
}

// BudgetOwner implements category.BudgetOwnerLookup
func (s *Service) BudgetOwner(ctx context.Context, budgetID uuid.UUID) (uuid.UUID, error) {
	b, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return uuid.Nil, err
	}
	return b.UserID, nil
}

// RecomputeCurrent rebuilds the cached aggregates of the budget's current
// period. It is a full query-and-replace, safe to run more than once.
// A budget without a current period is left alone.
func (s *Service) RecomputeCurrent(ctx context.Context, b *Budget) (*Summary, error) {
	now := s.now().UTC()
	p, err := s.repo.FindPeriodCovering(ctx, b.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find current period: %w", err)
	}
	if p == nil {
		return nil, nil
	}
	return s.recompute(ctx, b, p, now)
}

func (s *Service) recompute(ctx context.Context, b *Budget, p *Period, now time.Time) (*Summary, error) {
	spent, err := s.repo.SumBudgetSpending(ctx, b.ID, p.CurrencyCode, p.StartAt, p.EndAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sum spending: %w", err)
	}

	summary := &Summary{
		Budget:     b,
		Period:     p,
		Budgeted:   p.Amount,
		Spent:      spent,
		Remaining:  p.Amount.Sub(spent),
		ComputedAt: now,
	}

	values := map[string]decimal.Decimal{
		KeyBudgeted:  summary.Budgeted,
		KeySpent:     summary.Spent,
		KeyRemaining: summary.Remaining,
	}

	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, key := range []string{KeyBudgeted, KeySpent, KeyRemaining} {
		agg := &CachedAggregate{
			OwnerType:  OwnerTypeBudget,
			OwnerID:    b.ID,
			Key:        key,
			Scope:      p.ID.String(),
			Value:      values[key],
			ComputedAt: now,
		}
		if err := s.repo.UpsertAggregate(txCtx, agg); err != nil {
			_ = s.repo.RollbackTx(txCtx)
			return nil, fmt.Errorf("failed to upsert aggregate %s: %w", key, err)
		}
	}
	if err := s.repo.CommitTx(txCtx); err != nil {
		return nil, fmt.Errorf("failed to commit aggregates: %w", err)
	}

	return summary, nil
}

// Summary returns the cached aggregates of a period, or of the current
// period when periodID is nil
func (s *Service) Summary(ctx context.Context, userID, budgetID uuid.UUID, periodID *uuid.UUID) (*Summary, error) {
	b, err := s.GetBudget(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}

	var p *Period
	if periodID == nil {
		p, err = s.repo.FindPeriodCovering(ctx, budgetID, s.now().UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to find current period: %w", err)
		}
	} else {
		periods, err := s.repo.ListPeriods(ctx, budgetID)
		if err != nil {
			return nil, fmt.Errorf("failed to list periods: %w", err)
		}
		for _, candidate := range periods {
			if candidate.ID == *periodID {
				p = candidate
				break
			}
		}
	}
	if p == nil {
		return nil, ErrPeriodNotFound
	}

	aggs, err := s.repo.ListAggregates(ctx, OwnerTypeBudget, b.ID, p.ID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregates: %w", err)
	}

	summary := &Summary{
		Budget:    b,
		Period:    p,
		Budgeted:  p.Amount,
		Remaining: p.Amount,
	}
	for _, a := range aggs {
		switch a.Key {
		case KeyBudgeted:
			summary.Budgeted = a.Value
		case KeySpent:
			summary.Spent = a.Value
		case KeyRemaining:
			summary.Remaining = a.Value
		}
		if a.ComputedAt.After(summary.ComputedAt) {
			summary.ComputedAt = a.ComputedAt
		}
	}
	return summary, nil
}

func newPeriod(budgetID uuid.UUID, req AddPeriodRequest, now time.Time) (*Period, error) {
	if !req.EndAt.After(req.StartAt) {
		return nil, ErrInvalidPeriod
	}
	currency := strings.ToUpper(strings.TrimSpace(req.CurrencyCode))
	if !ledger.IsValidCurrencyCode(currency) {
		return nil, ErrInvalidCurrency
	}
	if req.Amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	return &Period{
		ID:           uuid.New(),
		BudgetID:     budgetID,
		StartAt:      req.StartAt.UTC(),
		EndAt:        req.EndAt.UTC(),
		CurrencyCode: currency,
		Amount:       req.Amount,
		CreatedAt:    now.UTC(),
	}, nil
}
