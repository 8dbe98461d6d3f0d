package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/internal/platform/category"
)

// CategoryRepository implements category.Repository using PostgreSQL
type CategoryRepository struct {
	txManager
}

// NewCategoryRepository creates a new PostgreSQL category repository
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{txManager{pool: pool}}
}

const categoryColumns = `id, user_id, name, type, parent_id, budget_id, is_archived, is_reportable, created_at, updated_at`

func (r *CategoryRepository) CreateCategory(ctx context.Context, c *category.Category) error {
	_, err := r.getQueryer(ctx).Exec(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		c.ID, c.UserID, c.Name, string(c.Type), c.ParentID, c.BudgetID,
		c.IsArchived, c.IsReportable, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return categoryWriteError("create", err)
	}
	return nil
}

func (r *CategoryRepository) UpdateCategory(ctx context.Context, c *category.Category) error {
	tag, err := r.getQueryer(ctx).Exec(ctx, `
		UPDATE categories
		SET name = $2, type = $3, parent_id = $4, budget_id = $5, is_archived = $6, is_reportable = $7, updated_at = $8
		WHERE id = $1
	`, c.ID, c.Name, string(c.Type), c.ParentID, c.BudgetID, c.IsArchived, c.IsReportable, c.UpdatedAt)
	if err != nil {
		return categoryWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrCategoryNotFound
	}
	return nil
}

func (r *CategoryRepository) GetCategory(ctx context.Context, id uuid.UUID) (*category.Category, error) {
	row := r.getQueryer(ctx).QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// FindCategoryByName returns nil without error when no category matches
func (r *CategoryRepository) FindCategoryByName(ctx context.Context, userID uuid.UUID, name string) (*category.Category, error) {
	row := r.getQueryer(ctx).QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 AND lower(name) = lower($2)`,
		userID, name,
	)
	c, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return c, nil
}

func (r *CategoryRepository) ListCategories(ctx context.Context, filter category.Filter) ([]*category.Category, error) {
	conditions := []string{"user_id = $1"}
	args := []any{filter.UserID}

	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.BudgetID != nil {
		args = append(args, *filter.BudgetID)
		conditions = append(conditions, fmt.Sprintf("budget_id = $%d", len(args)))
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "NOT is_archived")
	}

	rows, err := r.getQueryer(ctx).Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE `+strings.Join(conditions, " AND ")+` ORDER BY name`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []*category.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCategory(row pgx.Row) (*category.Category, error) {
	var c category.Category
	var typ string
	if err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &typ, &c.ParentID, &c.BudgetID,
		&c.IsArchived, &c.IsReportable, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Type = category.Type(typ)
	return &c, nil
}

func categoryWriteError(op string, err error) error {
	switch code, _ := pgErrorCode(err); code {
	case uniqueViolation:
		return category.ErrDuplicateName
	case fkViolation:
		return fmt.Errorf("failed to %s category: referenced parent or budget does not exist: %w", op, err)
	}
	return fmt.Errorf("failed to %s category: %w", op, err)
}

var _ category.Repository = (*CategoryRepository)(nil)
