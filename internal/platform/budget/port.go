package budget

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines budget persistence
type Repository interface {
	CreateBudget(ctx context.Context, b *Budget) error
	GetBudget(ctx context.Context, id uuid.UUID) (*Budget, error)
	ListBudgets(ctx context.Context, userID uuid.UUID) ([]*Budget, error)

	CreatePeriod(ctx context.Context, p *Period) error
	ListPeriods(ctx context.Context, budgetID uuid.UUID) ([]*Period, error)
	// FindPeriodCovering returns nil without error when no period contains at
	FindPeriodCovering(ctx context.Context, budgetID uuid.UUID, at time.Time) (*Period, error)

	// SumBudgetSpending totals the legs in currency tagged with an EXPENSE
	// category of the budget, for transactions effective in [from, to]. Each
	// transaction counts once, as the larger of its tagged debits and credits.
	SumBudgetSpending(ctx context.Context, budgetID uuid.UUID, currency string, from, to time.Time) (decimal.Decimal, error)

	UpsertAggregate(ctx context.Context, a *CachedAggregate) error
	ListAggregates(ctx context.Context, ownerType string, ownerID uuid.UUID, scope string) ([]*CachedAggregate, error)

	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}
