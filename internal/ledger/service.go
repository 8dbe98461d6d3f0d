package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryRequest describes one leg of a transaction to create
type EntryRequest struct {
	AccountID    uuid.UUID
	Amount       string // signed exact decimal, at most 6 fractional digits
	CurrencyCode *string
	Memo         *string
	CategoryID   *uuid.UUID
}

// CreateTransactionRequest is the input of CreateTransaction
type CreateTransactionRequest struct {
	Description    string
	EffectiveAt    time.Time
	PostedAt       *time.Time
	Reference      *string
	Source         *string
	IdempotencyKey *string
	CurrencyCode   *string
	ExchangeRate   *decimal.Decimal
	Entries        []EntryRequest
}

// UpdateTransactionRequest changes non-financial metadata. EntryCategories maps
// an entry id to its new category; a nil value clears the category.
type UpdateTransactionRequest struct {
	Description     *string
	EffectiveAt     *time.Time
	Reference       *string
	EntryCategories map[uuid.UUID]*uuid.UUID
}

// Metrics receives ledger counters
type Metrics interface {
	TransactionCreated(source string)
	ValidationFailed(reason string)
}

// Service is the single path through which ledger state changes
type Service struct {
	repo      Repository
	validator *transactionValidator
	committer *transactionCommitter
	publisher Publisher
	metrics   Metrics
}

// NewService creates a new ledger service.
// categories and periods may be nil when categories are not in use.
func NewService(repo Repository, categories CategoryLookup, periods PeriodLookup, publisher Publisher) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Service{
		repo:      repo,
		validator: newTransactionValidator(repo, categories, periods),
		committer: newTransactionCommitter(repo),
		publisher: publisher,
	}
}

// WithMetrics attaches a metrics sink
func (s *Service) WithMetrics(m Metrics) *Service {
	s.metrics = m
	return s
}

// CreateTransaction validates a balanced set of entries and persists it atomically.
//
// Checks run in this order, each failing with its own error:
// entry count, accounts (existence, ownership), categories (existence, ownership),
// entry currency, non-zero amounts, balance, single budget, covering budget period.
// TransactionCreated is published only after commit.
func (s *Service) CreateTransaction(ctx context.Context, userID uuid.UUID, req CreateTransactionRequest) (*Transaction, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUserID
	}

	entries, periodID, err := s.validator.validate(ctx, userID, &req)
	if err != nil {
		s.validationFailed(err)
		return nil, err
	}

	now := time.Now().UTC()
	tx := &Transaction{
		ID:             uuid.New(),
		UserID:         userID,
		Description:    strings.TrimSpace(req.Description),
		EffectiveAt:    req.EffectiveAt.UTC(),
		PostedAt:       req.PostedAt,
		Reference:      req.Reference,
		Source:         req.Source,
		IdempotencyKey: req.IdempotencyKey,
		ExchangeRate:   req.ExchangeRate,
		CurrencyCode:   upperPtr(req.CurrencyCode),
		BudgetPeriodID: periodID,
		CreatedAt:      now,
		UpdatedAt:      now,
		Entries:        make([]*Entry, len(entries)),
	}

	for i, e := range entries {
		tx.Entries[i] = &Entry{
			ID:            uuid.New(),
			TransactionID: tx.ID,
			AccountID:     e.account.ID,
			Amount:        e.amount,
			CurrencyCode:  e.currency,
			Memo:          e.req.Memo,
			CategoryID:    e.req.CategoryID,
			CreatedAt:     now,
		}
	}

	if err := s.committer.commit(ctx, func(txCtx context.Context) error {
		return s.repo.CreateTransaction(txCtx, tx)
	}); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		source := ""
		if tx.Source != nil {
			source = *tx.Source
		}
		s.metrics.TransactionCreated(source)
	}

	if err := s.publisher.Publish(ctx, TransactionCreated{Transaction: tx}); err != nil {
		return tx, fmt.Errorf("transaction created, post-commit hooks failed: %w", err)
	}

	return tx, nil
}

// UpdateTransaction changes description, effective date, reference and entry
// categories. Amounts and accounts are immutable once posted.
func (s *Service) UpdateTransaction(ctx context.Context, userID, transactionID uuid.UUID, req UpdateTransactionRequest) (*Transaction, error) {
	tx, err := s.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		if strings.TrimSpace(*req.Description) == "" {
			return nil, ErrMissingDescription
		}
		tx.Description = strings.TrimSpace(*req.Description)
	}
	if req.EffectiveAt != nil {
		if req.EffectiveAt.IsZero() {
			return nil, ErrMissingEffectiveAt
		}
		tx.EffectiveAt = req.EffectiveAt.UTC()
	}
	if req.Reference != nil {
		tx.Reference = req.Reference
	}

	byID := make(map[uuid.UUID]*Entry, len(tx.Entries))
	for _, e := range tx.Entries {
		byID[e.ID] = e
	}
	for entryID, categoryID := range req.EntryCategories {
		e, ok := byID[entryID]
		if !ok {
			return nil, ErrEntryNotFound
		}
		e.CategoryID = categoryID
	}

	refs := make([]*CategoryRef, len(tx.Entries))
	for i, e := range tx.Entries {
		if e.CategoryID == nil {
			continue
		}
		ref, err := s.validator.lookupCategory(ctx, userID, *e.CategoryID)
		if err != nil {
			s.validationFailed(err)
			return nil, entryErr(i, err)
		}
		refs[i] = ref
	}

	periodID, err := s.validator.resolveBudgetPeriod(ctx, refs, tx.EffectiveAt)
	if err != nil {
		s.validationFailed(err)
		return nil, err
	}
	tx.BudgetPeriodID = periodID
	tx.UpdatedAt = time.Now().UTC()

	if err := s.committer.commit(ctx, func(txCtx context.Context) error {
		return s.repo.UpdateTransaction(txCtx, tx)
	}); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, TransactionUpdated{Transaction: tx}); err != nil {
		return tx, fmt.Errorf("transaction updated, post-commit hooks failed: %w", err)
	}

	return tx, nil
}

// GetTransaction returns a transaction with its entries, scoped to the owner
func (s *Service) GetTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	// Another user's transaction is reported as missing
	if tx.UserID != userID {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

// ListTransactions lists the user's transactions, newest first
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error) {
	if filter.UserID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListTransactions(ctx, filter)
}

func (s *Service) validationFailed(err error) {
	if s.metrics == nil {
		return
	}
	var entryErr *EntryError
	if errors.As(err, &entryErr) {
		err = entryErr.Err
	}
	s.metrics.ValidationFailed(FailureReason(err))
}

func upperPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToUpper(strings.TrimSpace(*s))
	return &v
}
