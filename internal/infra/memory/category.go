package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/internal/platform/category"
)

func (s *Store) CreateCategory(ctx context.Context, c *category.Category) error {
	return s.write(ctx, func(st *state) error {
		for _, existing := range st.categories {
			if existing.UserID == c.UserID && strings.EqualFold(existing.Name, c.Name) {
				return category.ErrDuplicateName
			}
		}
		st.categories[c.ID] = *c
		return nil
	})
}

func (s *Store) UpdateCategory(ctx context.Context, c *category.Category) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.categories[c.ID]; !ok {
			return ledger.ErrCategoryNotFound
		}
		st.categories[c.ID] = *c
		return nil
	})
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*category.Category, error) {
	var out *category.Category
	s.read(ctx, func(st *state) {
		if c, ok := st.categories[id]; ok {
			out = &c
		}
	})
	if out == nil {
		return nil, ledger.ErrCategoryNotFound
	}
	return out, nil
}

func (s *Store) FindCategoryByName(ctx context.Context, userID uuid.UUID, name string) (*category.Category, error) {
	var out *category.Category
	s.read(ctx, func(st *state) {
		for _, c := range st.categories {
			if c.UserID == userID && strings.EqualFold(c.Name, name) {
				c := c
				out = &c
				return
			}
		}
	})
	return out, nil
}

func (s *Store) ListCategories(ctx context.Context, filter category.Filter) ([]*category.Category, error) {
	var out []*category.Category
	s.read(ctx, func(st *state) {
		for _, c := range st.categories {
			if c.UserID != filter.UserID {
				continue
			}
			if filter.Type != nil && c.Type != *filter.Type {
				continue
			}
			if filter.BudgetID != nil && (c.BudgetID == nil || *c.BudgetID != *filter.BudgetID) {
				continue
			}
			if c.IsArchived && !filter.IncludeArchived {
				continue
			}
			c := c
			out = append(out, &c)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var _ category.Repository = (*Store)(nil)
