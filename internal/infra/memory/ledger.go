package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/ledger"
)

// AddCurrency registers a currency; an existing code is left untouched
func (s *Store) AddCurrency(ctx context.Context, c ledger.Currency) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.currencies[c.Code]; !ok {
			st.currencies[c.Code] = c
		}
		return nil
	})
}

func (s *Store) GetCurrency(ctx context.Context, code string) (*ledger.Currency, error) {
	var out *ledger.Currency
	s.read(ctx, func(st *state) {
		if c, ok := st.currencies[code]; ok {
			out = &c
		}
	})
	if out == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrCurrencyNotFound, code)
	}
	return out, nil
}

func (s *Store) ListCurrencies(ctx context.Context) ([]*ledger.Currency, error) {
	var out []*ledger.Currency
	s.read(ctx, func(st *state) {
		for _, c := range st.currencies {
			c := c
			out = append(out, &c)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *ledger.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}
	return s.write(ctx, func(st *state) error {
		for _, a := range st.accounts {
			if a.UserID != account.UserID {
				continue
			}
			if account.IsFundamental && a.IsFundamental &&
				a.CurrencyCode == account.CurrencyCode && a.Type == account.Type {
				return fmt.Errorf("fundamental %s account for %s already exists", a.Type, a.CurrencyCode)
			}
			if !account.IsFundamental && !a.IsFundamental && strings.EqualFold(a.Name, account.Name) {
				return ledger.ErrDuplicateAccountName
			}
		}
		st.accounts[account.ID] = *account
		return nil
	})
}

func (s *Store) UpdateAccount(ctx context.Context, account *ledger.Account) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.accounts[account.ID]; !ok {
			return ledger.ErrAccountNotFound
		}
		st.accounts[account.ID] = *account
		return nil
	})
}

func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.accounts[id]; !ok {
			return ledger.ErrAccountNotFound
		}
		delete(st.accounts, id)
		return nil
	})
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var out *ledger.Account
	s.read(ctx, func(st *state) {
		if a, ok := st.accounts[id]; ok {
			out = &a
		}
	})
	if out == nil {
		return nil, ledger.ErrAccountNotFound
	}
	return out, nil
}

func (s *Store) FindAccountByName(ctx context.Context, userID uuid.UUID, name string) (*ledger.Account, error) {
	var out *ledger.Account
	s.read(ctx, func(st *state) {
		for _, a := range st.accounts {
			if a.UserID == userID && !a.IsFundamental && strings.EqualFold(a.Name, name) {
				a := a
				out = &a
				return
			}
		}
	})
	return out, nil
}

func (s *Store) FindFundamentalAccount(ctx context.Context, userID uuid.UUID, currencyCode string, accountType ledger.AccountType) (*ledger.Account, error) {
	var out *ledger.Account
	s.read(ctx, func(st *state) {
		for _, a := range st.accounts {
			if a.UserID == userID && a.IsFundamental && a.CurrencyCode == currencyCode && a.Type == accountType {
				a := a
				out = &a
				return
			}
		}
	})
	return out, nil
}

func (s *Store) ListAccounts(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, error) {
	var out []*ledger.Account
	s.read(ctx, func(st *state) {
		for _, a := range st.accounts {
			if a.UserID != filter.UserID {
				continue
			}
			if filter.Type != nil && a.Type != *filter.Type {
				continue
			}
			if filter.CurrencyCode != nil && a.CurrencyCode != *filter.CurrencyCode {
				continue
			}
			if a.IsArchived && !filter.IncludeArchived {
				continue
			}
			if a.IsFundamental && !filter.IncludeFundamental {
				continue
			}
			a := a
			out = append(out, &a)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CountEntriesByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	count := 0
	s.read(ctx, func(st *state) {
		for _, entries := range st.entries {
			for _, e := range entries {
				if e.AccountID == accountID {
					count++
				}
			}
		}
	})
	return count, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.transactions[tx.ID]; ok {
			return fmt.Errorf("transaction %s already exists", tx.ID)
		}
		entries := make([]ledger.Entry, len(tx.Entries))
		for i, e := range tx.Entries {
			if _, ok := st.accounts[e.AccountID]; !ok {
				return fmt.Errorf("entry %d: %w", i, ledger.ErrAccountNotFound)
			}
			entries[i] = *e
		}
		header := *tx
		header.Entries = nil
		st.transactions[tx.ID] = header
		st.entries[tx.ID] = entries
		return nil
	})
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.transactions[tx.ID]; !ok {
			return ledger.ErrTransactionNotFound
		}
		header := *tx
		header.Entries = nil
		st.transactions[tx.ID] = header

		categories := make(map[uuid.UUID]*uuid.UUID, len(tx.Entries))
		for _, e := range tx.Entries {
			categories[e.ID] = e.CategoryID
		}
		old := st.entries[tx.ID]
		updated := make([]ledger.Entry, len(old))
		for i, e := range old {
			if c, ok := categories[e.ID]; ok {
				e.CategoryID = c
			}
			updated[i] = e
		}
		st.entries[tx.ID] = updated
		return nil
	})
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	s.read(ctx, func(st *state) {
		if t, ok := st.transactions[id]; ok {
			out = withEntries(t, st.entries[id])
		}
	})
	if out == nil {
		return nil, ledger.ErrTransactionNotFound
	}
	return out, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	s.read(ctx, func(st *state) {
		for id, t := range st.transactions {
			if t.UserID != filter.UserID {
				continue
			}
			if filter.From != nil && t.EffectiveAt.Before(*filter.From) {
				continue
			}
			if filter.To != nil && t.EffectiveAt.After(*filter.To) {
				continue
			}
			entries := st.entries[id]
			if filter.AccountID != nil && !touches(entries, *filter.AccountID) {
				continue
			}
			out = append(out, withEntries(t, entries))
		}
	})

	sort.Slice(out, func(i, j int) bool {
		if !out[i].EffectiveAt.Equal(out[j].EffectiveAt) {
			return out[i].EffectiveAt.After(out[j].EffectiveAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset >= len(out) {
		return []*ledger.Transaction{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) GetAccountBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	balance := decimal.Zero
	s.read(ctx, func(st *state) {
		balance = sumAccount(st, accountID)
	})
	return balance, nil
}

func (s *Store) ListBalances(ctx context.Context, userID uuid.UUID) ([]*ledger.AccountBalance, error) {
	var out []*ledger.AccountBalance
	s.read(ctx, func(st *state) {
		for _, a := range st.accounts {
			if a.UserID != userID {
				continue
			}
			out = append(out, &ledger.AccountBalance{
				AccountID:    a.ID,
				CurrencyCode: a.CurrencyCode,
				Balance:      sumAccount(st, a.ID),
			})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID.String() < out[j].AccountID.String() })
	return out, nil
}

func sumAccount(st *state, accountID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, entries := range st.entries {
		for _, e := range entries {
			if e.AccountID == accountID {
				total = total.Add(e.Amount)
			}
		}
	}
	return total
}

func touches(entries []ledger.Entry, accountID uuid.UUID) bool {
	for _, e := range entries {
		if e.AccountID == accountID {
			return true
		}
	}
	return false
}

func withEntries(t ledger.Transaction, entries []ledger.Entry) *ledger.Transaction {
	t.Entries = make([]*ledger.Entry, len(entries))
	for i := range entries {
		e := entries[i]
		t.Entries[i] = &e
	}
	return &t
}

// Counts returns the number of stored transactions and entries, for tests
func (s *Store) Counts(ctx context.Context) (transactions, entries int) {
	s.read(ctx, func(st *state) {
		transactions = len(st.transactions)
		for _, e := range st.entries {
			entries += len(e)
		}
	})
	return transactions, entries
}

var _ ledger.Repository = (*Store)(nil)
