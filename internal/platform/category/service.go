package category

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/ledger"
)

// CreateRequest describes a new category
type CreateRequest struct {
	Name         string
	Type         Type
	ParentID     *uuid.UUID
	BudgetID     *uuid.UUID
	IsReportable bool
}

// UpdateRequest carries optional changes. ClearParent and ClearBudget unlink.
type UpdateRequest struct {
	Name         *string
	ParentID     *uuid.UUID
	ClearParent  bool
	BudgetID     *uuid.UUID
	ClearBudget  bool
	IsReportable *bool
}

// Service handles category business logic
type Service struct {
	repo    Repository
	budgets BudgetOwnerLookup
}

// NewService creates a new category service
func NewService(repo Repository, budgets BudgetOwnerLookup) *Service {
	return &Service{
		repo:    repo,
		budgets: budgets,
	}
}

// Create validates and persists a new category
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*Category, error) {
	now := time.Now().UTC()
	c := &Category{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         strings.TrimSpace(req.Name),
		Type:         req.Type,
		ParentID:     req.ParentID,
		BudgetID:     req.BudgetID,
		IsReportable: req.IsReportable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := s.checkName(ctx, c); err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, c); err != nil {
		return nil, err
	}
	if err := s.checkBudget(ctx, c); err != nil {
		return nil, err
	}

	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return c, nil
}

// Update applies changes to a category owned by the user
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, req UpdateRequest) (*Category, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.ClearParent {
		c.ParentID = nil
	} else if req.ParentID != nil {
		c.ParentID = req.ParentID
	}
	if req.ClearBudget {
		c.BudgetID = nil
	} else if req.BudgetID != nil {
		c.BudgetID = req.BudgetID
	}
	if req.IsReportable != nil {
		c.IsReportable = *req.IsReportable
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkName(ctx, c); err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, c); err != nil {
		return nil, err
	}
	if err := s.checkBudget(ctx, c); err != nil {
		return nil, err
	}

	c.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	return c, nil
}

// Archive hides a category from pickers; existing entries keep it
func (s *Service) Archive(ctx context.Context, userID, id uuid.UUID) error {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	c.IsArchived = true
	c.UpdatedAt = time.Now().UTC()
	return s.repo.UpdateCategory(ctx, c)
}

// Get returns a category owned by the user
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrUnauthorized
	}
	return c, nil
}

// List returns the user's categories
func (s *Service) List(ctx context.Context, filter Filter) ([]*Category, error) {
	if filter.UserID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	return s.repo.ListCategories(ctx, filter)
}

// LookupCategory resolves a category for the ledger engine
func (s *Service) LookupCategory(ctx context.Context, id uuid.UUID) (*ledger.CategoryRef, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ledger.CategoryRef{
		ID:       c.ID,
		UserID:   c.UserID,
		BudgetID: c.BudgetID,
	}, nil
}

func (s *Service) checkName(ctx context.Context, c *Category) error {
	existing, err := s.repo.FindCategoryByName(ctx, c.UserID, c.Name)
	if err != nil {
		return fmt.Errorf("failed to check category name: %w", err)
	}
	if existing != nil && existing.ID != c.ID {
		return ErrDuplicateName
	}
	return nil
}

// checkParent walks up the parent chain: same owner, same type, no cycles
func (s *Service) checkParent(ctx context.Context, c *Category) error {
	seen := map[uuid.UUID]bool{c.ID: true}
	next := c.ParentID
	first := true
	for next != nil {
		if seen[*next] {
			return ErrCycle
		}
		seen[*next] = true

		parent, err := s.repo.GetCategory(ctx, *next)
		if err != nil {
			if errors.Is(err, ledger.ErrCategoryNotFound) {
				return ErrParentNotFound
			}
			return err
		}
		if parent.UserID != c.UserID {
			return ErrParentNotFound
		}
		if first && parent.Type != c.Type {
			return ErrParentTypeMismatch
		}
		first = false
		next = parent.ParentID
	}
	return nil
}

func (s *Service) checkBudget(ctx context.Context, c *Category) error {
	if c.BudgetID == nil {
		return nil
	}
	if s.budgets == nil {
		return ErrBudgetNotFound
	}
	owner, err := s.budgets.BudgetOwner(ctx, *c.BudgetID)
	if err != nil {
		return ErrBudgetNotFound
	}
	if owner != c.UserID {
		return ErrBudgetNotFound
	}
	return nil
}
