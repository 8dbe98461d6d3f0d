package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/platform/budget"
	"github.com/kislikjeka/moneyledger/internal/platform/category"
)

func (s *Store) CreateBudget(ctx context.Context, b *budget.Budget) error {
	return s.write(ctx, func(st *state) error {
		st.budgets[b.ID] = *b
		return nil
	})
}

func (s *Store) GetBudget(ctx context.Context, id uuid.UUID) (*budget.Budget, error) {
	var out *budget.Budget
	s.read(ctx, func(st *state) {
		if b, ok := st.budgets[id]; ok {
			out = &b
		}
	})
	if out == nil {
		return nil, budget.ErrBudgetNotFound
	}
	return out, nil
}

func (s *Store) ListBudgets(ctx context.Context, userID uuid.UUID) ([]*budget.Budget, error) {
	var out []*budget.Budget
	s.read(ctx, func(st *state) {
		for _, b := range st.budgets {
			if b.UserID == userID && !b.IsArchived {
				b := b
				out = append(out, &b)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreatePeriod(ctx context.Context, p *budget.Period) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.budgets[p.BudgetID]; !ok {
			return budget.ErrBudgetNotFound
		}
		for _, e := range st.periods {
			if e.BudgetID == p.BudgetID && p.Overlaps(&e) {
				return budget.ErrPeriodOverlap
			}
		}
		st.periods[p.ID] = *p
		return nil
	})
}

func (s *Store) ListPeriods(ctx context.Context, budgetID uuid.UUID) ([]*budget.Period, error) {
	var out []*budget.Period
	s.read(ctx, func(st *state) {
		for _, p := range st.periods {
			if p.BudgetID == budgetID {
				p := p
				out = append(out, &p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *Store) FindPeriodCovering(ctx context.Context, budgetID uuid.UUID, at time.Time) (*budget.Period, error) {
	var out *budget.Period
	s.read(ctx, func(st *state) {
		for _, p := range st.periods {
			if p.BudgetID == budgetID && p.Contains(at) {
				p := p
				out = &p
				return
			}
		}
	})
	return out, nil
}

// SumBudgetSpending counts each transaction once, as the larger of its tagged
// debits and tagged credits, so tagging both legs does not double the total.
func (s *Store) SumBudgetSpending(ctx context.Context, budgetID uuid.UUID, currency string, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	s.read(ctx, func(st *state) {
		for id, t := range st.transactions {
			if t.EffectiveAt.Before(from) || t.EffectiveAt.After(to) {
				continue
			}
			debits, credits := decimal.Zero, decimal.Zero
			for _, e := range st.entries[id] {
				if e.CategoryID == nil || e.CurrencyCode != currency {
					continue
				}
				c, ok := st.categories[*e.CategoryID]
				if !ok || c.BudgetID == nil || *c.BudgetID != budgetID || c.Type != category.TypeExpense {
					continue
				}
				if e.Amount.IsPositive() {
					debits = debits.Add(e.Amount)
				} else {
					credits = credits.Add(e.Amount.Abs())
				}
			}
			total = total.Add(decimal.Max(debits, credits))
		}
	})
	return total, nil
}

func (s *Store) UpsertAggregate(ctx context.Context, a *budget.CachedAggregate) error {
	return s.write(ctx, func(st *state) error {
		st.aggregates[aggregateKey{a.OwnerType, a.OwnerID, a.Key, a.Scope}] = *a
		return nil
	})
}

func (s *Store) ListAggregates(ctx context.Context, ownerType string, ownerID uuid.UUID, scope string) ([]*budget.CachedAggregate, error) {
	var out []*budget.CachedAggregate
	s.read(ctx, func(st *state) {
		for k, a := range st.aggregates {
			if k.ownerType == ownerType && k.ownerID == ownerID && k.scope == scope {
				a := a
				out = append(out, &a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// AggregateCount returns the number of cached aggregates, for tests
func (s *Store) AggregateCount(ctx context.Context) int {
	n := 0
	s.read(ctx, func(st *state) { n = len(st.aggregates) })
	return n
}

var _ budget.Repository = (*Store)(nil)
