package category

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type separates income from expense classifications
type Type string

const (
	TypeIncome  Type = "INCOME"
	TypeExpense Type = "EXPENSE"
)

// IsValid checks if the category type is known
func (t Type) IsValid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Category classifies entries; it may roll up into a parent and feed a budget
type Category struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Name         string
	Type         Type
	ParentID     *uuid.UUID
	BudgetID     *uuid.UUID
	IsArchived   bool
	IsReportable bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks the category fields that need no lookups
func (c *Category) Validate() error {
	if c.UserID == uuid.Nil {
		return ErrInvalidUserID
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrMissingName
	}
	if len(name) > 100 {
		return ErrNameTooLong
	}
	if !c.Type.IsValid() {
		return ErrInvalidType
	}
	if c.ParentID != nil && *c.ParentID == c.ID {
		return ErrCycle
	}
	return nil
}

// Filter narrows category listings
type Filter struct {
	UserID          uuid.UUID
	Type            *Type
	BudgetID        *uuid.UUID
	IncludeArchived bool
}
