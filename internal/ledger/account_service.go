package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateAccountRequest describes a user-created account
type CreateAccountRequest struct {
	Name         string
	CurrencyCode string
	Type         AccountType
	Subtype      *AccountSubtype
}

// UpdateAccountRequest carries optional account changes; nil fields are left untouched
type UpdateAccountRequest struct {
	Name         *string
	CurrencyCode *string
	Subtype      *AccountSubtype
	IsArchived   *bool
}

// AccountService manages the account registry
type AccountService struct {
	repo      Repository
	publisher Publisher
}

// NewAccountService creates a new account service. A nil publisher disables events.
func NewAccountService(repo Repository, publisher Publisher) *AccountService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &AccountService{
		repo:      repo,
		publisher: publisher,
	}
}

// CreateAccount validates and persists a user account, then publishes AccountCreated.
// When a listener fails the committed account is still returned along with the error.
func (s *AccountService) CreateAccount(ctx context.Context, userID uuid.UUID, req CreateAccountRequest) (*Account, error) {
	now := time.Now().UTC()
	account := &Account{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         strings.TrimSpace(req.Name),
		CurrencyCode: strings.ToUpper(strings.TrimSpace(req.CurrencyCode)),
		Type:         req.Type,
		Subtype:      req.Subtype,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetCurrency(ctx, account.CurrencyCode); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindAccountByName(ctx, userID, account.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check account name: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateAccountName
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.publisher.Publish(ctx, AccountCreated{Account: account}); err != nil {
		return account, fmt.Errorf("account created, post-commit hooks failed: %w", err)
	}

	return account, nil
}

// UpdateAccount applies the requested changes and publishes AccountUpdated
func (s *AccountService) UpdateAccount(ctx context.Context, userID, accountID uuid.UUID, req UpdateAccountRequest) (*Account, error) {
	account, err := s.GetAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	if account.IsFundamental {
		return nil, ErrFundamentalAccountImmutable
	}

	previousCurrency := account.CurrencyCode
	updated := *account

	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Subtype != nil {
		updated.Subtype = req.Subtype
	}
	if req.IsArchived != nil {
		updated.IsArchived = *req.IsArchived
	}
	if req.CurrencyCode != nil {
		updated.CurrencyCode = strings.ToUpper(strings.TrimSpace(*req.CurrencyCode))
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	if updated.Name != account.Name {
		existing, err := s.repo.FindAccountByName(ctx, userID, updated.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to check account name: %w", err)
		}
		if existing != nil && existing.ID != account.ID {
			return nil, ErrDuplicateAccountName
		}
	}

	if updated.CurrencyCode != previousCurrency {
		if _, err := s.repo.GetCurrency(ctx, updated.CurrencyCode); err != nil {
			return nil, err
		}
		count, err := s.repo.CountEntriesByAccount(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count entries: %w", err)
		}
		if count > 0 {
			return nil, ErrAccountHasEntries
		}
	}

	updated.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateAccount(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	event := AccountUpdated{Account: &updated, PreviousCurrencyCode: previousCurrency}
	if err := s.publisher.Publish(ctx, event); err != nil {
		return &updated, fmt.Errorf("account updated, post-commit hooks failed: %w", err)
	}

	return &updated, nil
}

// DeleteAccount removes a non-fundamental account without entries
func (s *AccountService) DeleteAccount(ctx context.Context, userID, accountID uuid.UUID) error {
	account, err := s.GetAccount(ctx, userID, accountID)
	if err != nil {
		return err
	}

	if account.IsFundamental {
		return ErrFundamentalAccountDeletion
	}

	count, err := s.repo.CountEntriesByAccount(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}
	if count > 0 {
		return ErrAccountHasEntries
	}

	return s.repo.DeleteAccount(ctx, account.ID)
}

// GetAccount returns an account owned by the user
func (s *AccountService) GetAccount(ctx context.Context, userID, accountID uuid.UUID) (*Account, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, ErrAccountOwnershipMismatch
	}
	return account, nil
}

// ListAccounts returns the user's accounts matching the filter
func (s *AccountService) ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	if filter.UserID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	return s.repo.ListAccounts(ctx, filter)
}

// GetAccountBalance derives the balance of one of the user's accounts from its entries
func (s *AccountService) GetAccountBalance(ctx context.Context, userID, accountID uuid.UUID) (*AccountBalance, error) {
	account, err := s.GetAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	balance, err := s.repo.GetAccountBalance(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return &AccountBalance{
		AccountID:    account.ID,
		CurrencyCode: account.CurrencyCode,
		Balance:      balance,
	}, nil
}

// ListBalances returns a balance for every account of the user
func (s *AccountService) ListBalances(ctx context.Context, userID uuid.UUID) ([]*AccountBalance, error) {
	return s.repo.ListBalances(ctx, userID)
}

// AvailableFunds returns the balance of an account; zero for accounts without entries
func (s *AccountService) AvailableFunds(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.GetAccountBalance(ctx, accountID)
}
