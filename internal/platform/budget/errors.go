package budget

import "errors"

// Budget errors
var (
	ErrInvalidUserID     = errors.New("invalid user ID")
	ErrMissingName       = errors.New("budget name is required")
	ErrBudgetNotFound    = errors.New("budget not found")
	ErrUnauthorized      = errors.New("budget does not belong to user")
	ErrPeriodNotFound    = errors.New("budget period not found")
	ErrInvalidPeriod     = errors.New("period end must be after its start")
	ErrPeriodOverlap     = errors.New("period overlaps an existing period of the budget")
	ErrInvalidAmount     = errors.New("budgeted amount must not be negative")
	ErrInvalidCurrency   = errors.New("invalid currency code")
	ErrInvalidPeriodSpan = errors.New("period count must be between 1 and 120")
)
