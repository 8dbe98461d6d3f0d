package fundamental

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

// ErrSetup means the currency the provisioner was asked for is not registered.
// It is a deployment problem and is never retried.
var ErrSetup = errors.New("fundamental account setup failed")

// fundamentalTypes are the system accounts every (user, currency) pair gets
var fundamentalTypes = []ledger.AccountType{
	ledger.AccountTypeExpense,
	ledger.AccountTypeIncome,
}

// Provisioner guarantees one fundamental EXPENSE and one fundamental INCOME
// account per user for every currency the user holds accounts in.
// It writes through the repository, never the account service, so its own
// writes publish no events.
type Provisioner struct {
	repo   ledger.Repository
	logger *logger.Logger
}

// NewProvisioner creates a new provisioner
func NewProvisioner(repo ledger.Repository, log *logger.Logger) *Provisioner {
	return &Provisioner{
		repo:   repo,
		logger: log.WithField("component", "fundamental_provisioner"),
	}
}

// Register subscribes the provisioner to account events
func (p *Provisioner) Register(bus *ledger.Bus) {
	bus.Subscribe(ledger.EventAccountCreated, "fundamental_provisioner", p.Handle)
	bus.Subscribe(ledger.EventAccountUpdated, "fundamental_provisioner", p.Handle)
}

// Handle reacts to account creation and currency changes
func (p *Provisioner) Handle(ctx context.Context, event ledger.Event) error {
	switch e := event.(type) {
	case ledger.AccountCreated:
		if e.Account.IsFundamental {
			return nil
		}
		return p.Ensure(ctx, e.Account.UserID, e.Account.CurrencyCode)
	case ledger.AccountUpdated:
		if e.Account.IsFundamental || !e.CurrencyChanged() {
			return nil
		}
		return p.Ensure(ctx, e.Account.UserID, e.Account.CurrencyCode)
	}
	return nil
}

// Ensure creates whichever fundamental accounts are missing for (user, currency).
// Calling it repeatedly is safe.
func (p *Provisioner) Ensure(ctx context.Context, userID uuid.UUID, currencyCode string) error {
	if _, err := p.repo.GetCurrency(ctx, currencyCode); err != nil {
		if errors.Is(err, ledger.ErrCurrencyNotFound) {
			return fmt.Errorf("%w: currency %s is not registered", ErrSetup, currencyCode)
		}
		return fmt.Errorf("failed to load currency: %w", err)
	}

	txCtx, err := p.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = p.repo.RollbackTx(txCtx)
		}
	}()

	created := 0
	for _, accountType := range fundamentalTypes {
		existing, err := p.repo.FindFundamentalAccount(txCtx, userID, currencyCode, accountType)
		if err != nil {
			return fmt.Errorf("failed to look up fundamental account: %w", err)
		}
		if existing != nil {
			continue
		}

		now := time.Now().UTC()
		account := &ledger.Account{
			ID:            uuid.New(),
			UserID:        userID,
			Name:          Name(accountType, currencyCode),
			CurrencyCode:  currencyCode,
			Type:          accountType,
			IsFundamental: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := p.repo.CreateAccount(txCtx, account); err != nil {
			return fmt.Errorf("failed to create fundamental account: %w", err)
		}
		created++
	}

	if err := p.repo.CommitTx(txCtx); err != nil {
		return fmt.Errorf("failed to commit fundamental accounts: %w", err)
	}
	committed = true

	if created > 0 {
		p.logger.WithContext(ctx).Info("fundamental accounts provisioned",
			"user_id", userID,
			"currency", currencyCode,
			"created", created)
	}

	return nil
}

// Resolve returns the fundamental account of the given type, provisioning the
// pair first when it is missing
func (p *Provisioner) Resolve(ctx context.Context, userID uuid.UUID, currencyCode string, accountType ledger.AccountType) (*ledger.Account, error) {
	account, err := p.repo.FindFundamentalAccount(ctx, userID, currencyCode, accountType)
	if err != nil {
		return nil, fmt.Errorf("failed to look up fundamental account: %w", err)
	}
	if account != nil {
		return account, nil
	}

	if err := p.Ensure(ctx, userID, currencyCode); err != nil {
		return nil, err
	}

	account, err = p.repo.FindFundamentalAccount(ctx, userID, currencyCode, accountType)
	if err != nil {
		return nil, fmt.Errorf("failed to look up fundamental account: %w", err)
	}
	if account == nil {
		return nil, ledger.ErrFundamentalAccountNotFound
	}
	return account, nil
}

// Name is the display name of a fundamental account
func Name(accountType ledger.AccountType, currencyCode string) string {
	if accountType == ledger.AccountTypeIncome {
		return fmt.Sprintf("External Income (%s)", currencyCode)
	}
	return fmt.Sprintf("External Expense (%s)", currencyCode)
}
