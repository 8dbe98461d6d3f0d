package category

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines category persistence.
// GetCategory returns ledger.ErrCategoryNotFound for unknown ids.
type Repository interface {
	CreateCategory(ctx context.Context, c *Category) error
	UpdateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	FindCategoryByName(ctx context.Context, userID uuid.UUID, name string) (*Category, error)
	ListCategories(ctx context.Context, filter Filter) ([]*Category, error)
}

// BudgetOwnerLookup reports the owner of a budget
type BudgetOwnerLookup interface {
	BudgetOwner(ctx context.Context, budgetID uuid.UUID) (uuid.UUID, error)
}
