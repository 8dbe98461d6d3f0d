package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/internal/platform/budget"
	"github.com/kislikjeka/moneyledger/internal/platform/category"
)

// BudgetRepository implements budget.Repository using PostgreSQL
type BudgetRepository struct {
	txManager
}

// NewBudgetRepository creates a new PostgreSQL budget repository
func NewBudgetRepository(pool *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{txManager{pool: pool}}
}

func (r *BudgetRepository) CreateBudget(ctx context.Context, b *budget.Budget) error {
	_, err := r.getQueryer(ctx).Exec(ctx, `
		INSERT INTO budgets (id, user_id, name, is_archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.UserID, b.Name, b.IsArchived, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

func (r *BudgetRepository) GetBudget(ctx context.Context, id uuid.UUID) (*budget.Budget, error) {
	var b budget.Budget
	err := r.getQueryer(ctx).QueryRow(ctx, `
		SELECT id, user_id, name, is_archived, created_at, updated_at FROM budgets WHERE id = $1
	`, id).Scan(&b.ID, &b.UserID, &b.Name, &b.IsArchived, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, budget.ErrBudgetNotFound
		}
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}
	return &b, nil
}

// ListBudgets returns the active budgets of a user
func (r *BudgetRepository) ListBudgets(ctx context.Context, userID uuid.UUID) ([]*budget.Budget, error) {
	rows, err := r.getQueryer(ctx).Query(ctx, `
		SELECT id, user_id, name, is_archived, created_at, updated_at
		FROM budgets
		WHERE user_id = $1 AND NOT is_archived
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var out []*budget.Budget
	for rows.Next() {
		var b budget.Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.IsArchived, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// CreatePeriod rejects periods that overlap another period of the same budget.
// The check and the insert run under a row lock on the budget; without a
// transaction in ctx the repository opens one so the lock is held until commit.
func (r *BudgetRepository) CreatePeriod(ctx context.Context, p *budget.Period) error {
	if getTxFromContext(ctx) != nil {
		return r.createPeriod(ctx, p)
	}

	txCtx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := r.createPeriod(txCtx, p); err != nil {
		_ = r.RollbackTx(txCtx)
		return err
	}
	return r.CommitTx(txCtx)
}

func (r *BudgetRepository) createPeriod(ctx context.Context, p *budget.Period) error {
	q := r.getQueryer(ctx)

	var locked uuid.UUID
	err := q.QueryRow(ctx, `SELECT id FROM budgets WHERE id = $1 FOR UPDATE`, p.BudgetID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return budget.ErrBudgetNotFound
		}
		return fmt.Errorf("failed to lock budget: %w", err)
	}

	var overlaps bool
	err = q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM budget_periods
			WHERE budget_id = $1 AND start_at <= $3 AND end_at >= $2
		)
	`, p.BudgetID, p.StartAt, p.EndAt).Scan(&overlaps)
	if err != nil {
		return fmt.Errorf("failed to check period overlap: %w", err)
	}
	if overlaps {
		return budget.ErrPeriodOverlap
	}

	_, err = q.Exec(ctx, `
		INSERT INTO budget_periods (id, budget_id, start_at, end_at, currency_code, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
	`, p.ID, p.BudgetID, p.StartAt, p.EndAt, p.CurrencyCode, p.Amount.String(), p.CreatedAt)
	if err != nil {
		switch code, _ := pgErrorCode(err); code {
		case fkViolation:
			return ledger.ErrCurrencyNotFound
		case exclusionViolation:
			return budget.ErrPeriodOverlap
		}
		return fmt.Errorf("failed to create period: %w", err)
	}
	return nil
}

const periodColumns = `id, budget_id, start_at, end_at, currency_code, amount::text, created_at`

func (r *BudgetRepository) ListPeriods(ctx context.Context, budgetID uuid.UUID) ([]*budget.Period, error) {
	rows, err := r.getQueryer(ctx).Query(ctx,
		`SELECT `+periodColumns+` FROM budget_periods WHERE budget_id = $1 ORDER BY start_at`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	defer rows.Close()

	var out []*budget.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *BudgetRepository) FindPeriodCovering(ctx context.Context, budgetID uuid.UUID, at time.Time) (*budget.Period, error) {
	row := r.getQueryer(ctx).QueryRow(ctx, `
		SELECT `+periodColumns+` FROM budget_periods
		WHERE budget_id = $1 AND start_at <= $2 AND end_at >= $2
		LIMIT 1
	`, budgetID, at)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// SumBudgetSpending totals the legs tagged with an EXPENSE category of the
// budget, whatever account they were posted to. Each transaction counts once:
// the larger of its tagged debits and tagged credits.
func (r *BudgetRepository) SumBudgetSpending(ctx context.Context, budgetID uuid.UUID, currency string, from, to time.Time) (decimal.Decimal, error) {
	var sum string
	err := r.getQueryer(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(spent), 0)::text
		FROM (
			SELECT GREATEST(
				COALESCE(SUM(e.amount) FILTER (WHERE e.amount > 0), 0),
				COALESCE(-SUM(e.amount) FILTER (WHERE e.amount < 0), 0)
			) AS spent
			FROM entries e
			JOIN transactions t ON t.id = e.transaction_id
			JOIN categories c ON c.id = e.category_id
			WHERE c.budget_id = $1
			  AND c.type = $2
			  AND e.currency_code = $3
			  AND t.effective_at BETWEEN $4 AND $5
			GROUP BY e.transaction_id
		) per_tx
	`, budgetID, string(category.TypeExpense), currency, from, to).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum budget spending: %w", err)
	}
	return decimal.NewFromString(sum)
}

func (r *BudgetRepository) UpsertAggregate(ctx context.Context, a *budget.CachedAggregate) error {
	_, err := r.getQueryer(ctx).Exec(ctx, `
		INSERT INTO cached_aggregates (owner_type, owner_id, key, scope, value, computed_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		ON CONFLICT (owner_type, owner_id, key, scope)
		DO UPDATE SET value = EXCLUDED.value, computed_at = EXCLUDED.computed_at
	`, a.OwnerType, a.OwnerID, a.Key, a.Scope, a.Value.String(), a.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert aggregate: %w", err)
	}
	return nil
}

func (r *BudgetRepository) ListAggregates(ctx context.Context, ownerType string, ownerID uuid.UUID, scope string) ([]*budget.CachedAggregate, error) {
	rows, err := r.getQueryer(ctx).Query(ctx, `
		SELECT owner_type, owner_id, key, scope, value::text, computed_at
		FROM cached_aggregates
		WHERE owner_type = $1 AND owner_id = $2 AND scope = $3
		ORDER BY key
	`, ownerType, ownerID, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregates: %w", err)
	}
	defer rows.Close()

	var out []*budget.CachedAggregate
	for rows.Next() {
		var a budget.CachedAggregate
		var value string
		if err := rows.Scan(&a.OwnerType, &a.OwnerID, &a.Key, &a.Scope, &value, &a.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		if a.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("invalid aggregate value %q: %w", value, err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func scanPeriod(row pgx.Row) (*budget.Period, error) {
	var p budget.Period
	var amount string
	if err := row.Scan(&p.ID, &p.BudgetID, &p.StartAt, &p.EndAt, &p.CurrencyCode, &amount, &p.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid period amount %q: %w", amount, err)
	}
	p.Amount = d
	return &p, nil
}

var _ budget.Repository = (*BudgetRepository)(nil)
