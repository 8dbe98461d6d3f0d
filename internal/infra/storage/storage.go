// Package storage opens the configured persistence backend and exposes its
// repositories behind the domain ports.
package storage

import (
	"context"
	"fmt"

	"github.com/kislikjeka/moneyledger/internal/infra/memory"
	"github.com/kislikjeka/moneyledger/internal/infra/postgres"
	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/internal/platform/budget"
	"github.com/kislikjeka/moneyledger/internal/platform/category"
	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/pkg/config"
	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

// builtinCurrencies mirrors the rows seeded by the first migration
var builtinCurrencies = []ledger.Currency{
	{Code: "USD", Name: "US Dollar", Decimals: 2},
	{Code: "EUR", Name: "Euro", Decimals: 2},
	{Code: "VES", Name: "Venezuelan Bolívar", Decimals: 2},
	{Code: "COP", Name: "Colombian Peso", Decimals: 2},
}

type currencyAdder interface {
	AddCurrency(ctx context.Context, c ledger.Currency) error
}

// Storage bundles the repositories of one backend
type Storage struct {
	Backend    string
	Ledger     ledger.Repository
	Categories category.Repository
	Budgets    budget.Repository
	Exchange   exchange.Repository

	// Ping is nil for the in-memory backend
	Ping  func(ctx context.Context) error
	close func()
}

// Open connects to the backend selected by cfg.Storage and makes sure the
// default currency exists
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Storage, error) {
	var (
		s     *Storage
		adder currencyAdder
	)

	switch cfg.Storage {
	case config.StorageMemory:
		store := memory.NewStore()
		for _, c := range builtinCurrencies {
			if err := store.AddCurrency(ctx, c); err != nil {
				return nil, fmt.Errorf("failed to seed currency %s: %w", c.Code, err)
			}
		}
		s = &Storage{
			Backend:    config.StorageMemory,
			Ledger:     store,
			Categories: store,
			Budgets:    store,
			Exchange:   store,
			close:      func() {},
		}
		adder = store
		log.Warn("using in-memory storage; data is lost on exit")

	case config.StoragePostgres:
		db, err := postgres.NewPool(ctx, postgres.Config{
			URL:              cfg.DatabaseURL,
			MaxConns:         int32(cfg.DBMaxConns),
			MinConns:         int32(cfg.DBMinConns),
			StatementTimeout: cfg.DBStatementTimeout,
		})
		if err != nil {
			return nil, err
		}
		ledgerRepo := postgres.NewLedgerRepository(db.Pool)
		s = &Storage{
			Backend:    config.StoragePostgres,
			Ledger:     ledgerRepo,
			Categories: postgres.NewCategoryRepository(db.Pool),
			Budgets:    postgres.NewBudgetRepository(db.Pool),
			Exchange:   postgres.NewExchangeRepository(db.Pool),
			Ping:       db.Health,
			close:      db.Close,
		}
		adder = ledgerRepo
		log.Info("database connection established")

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}

	if cfg.DefaultCurrency != "" {
		if _, err := s.Ledger.GetCurrency(ctx, cfg.DefaultCurrency); err != nil {
			c := defaultCurrency(cfg.DefaultCurrency, log)
			if err := adder.AddCurrency(ctx, c); err != nil {
				s.Close()
				return nil, fmt.Errorf("failed to register default currency: %w", err)
			}
		}
	}

	return s, nil
}

// defaultCurrency takes the minor-unit digits from ISO 4217 and falls back to
// two digits for codes outside the table
func defaultCurrency(code string, log *logger.Logger) ledger.Currency {
	c := ledger.Currency{Code: code, Name: code, Decimals: 2}
	if iso, ok := money.LookupCurrency(code); ok {
		c.Decimals = iso.Decimals
		return c
	}
	log.Warn("default currency is not an ISO 4217 code, assuming 2 decimals", "currency", code)
	return c
}

// Close releases the backend's connections
func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}
