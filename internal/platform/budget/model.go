package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Budget is a named spending plan split into periods
type Budget struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Name       string
	IsArchived bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Period is a dated slice of a budget. The range [StartAt, EndAt] is inclusive.
type Period struct {
	ID           uuid.UUID
	BudgetID     uuid.UUID
	StartAt      time.Time
	EndAt        time.Time
	CurrencyCode string
	Amount       decimal.Decimal
	CreatedAt    time.Time
}

// Contains reports whether t falls within the period
func (p *Period) Contains(t time.Time) bool {
	return !t.Before(p.StartAt) && !t.After(p.EndAt)
}

// Overlaps reports whether two periods share at least one instant
func (p *Period) Overlaps(o *Period) bool {
	return !p.StartAt.After(o.EndAt) && !o.StartAt.After(p.EndAt)
}

// OwnerTypeBudget marks aggregates cached for a budget
const OwnerTypeBudget = "budget"

// Aggregate keys cached per budget period
const (
	KeyBudgeted  = "budgeted"
	KeySpent     = "spent"
	KeyRemaining = "remaining"
)

// CachedAggregate is a derived figure, unique on (OwnerType, OwnerID, Key, Scope)
type CachedAggregate struct {
	OwnerType  string
	OwnerID    uuid.UUID
	Key        string
	Scope      string
	Value      decimal.Decimal
	ComputedAt time.Time
}

// Summary is the cached state of one budget period
type Summary struct {
	Budget     *Budget
	Period     *Period
	Budgeted   decimal.Decimal
	Spent      decimal.Decimal
	Remaining  decimal.Decimal
	ComputedAt time.Time
}
