package category

import "errors"

// Category errors
var (
	ErrInvalidUserID      = errors.New("invalid user ID")
	ErrMissingName        = errors.New("category name is required")
	ErrNameTooLong        = errors.New("category name exceeds 100 characters")
	ErrInvalidType        = errors.New("invalid category type")
	ErrDuplicateName      = errors.New("category name already exists for this user")
	ErrParentNotFound     = errors.New("parent category not found")
	ErrParentTypeMismatch = errors.New("parent category has a different type")
	ErrCycle              = errors.New("category cannot be its own ancestor")
	ErrBudgetNotFound     = errors.New("budget not found")
	ErrUnauthorized       = errors.New("category does not belong to user")
)
