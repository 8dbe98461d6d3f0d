package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/ledger"
)

// LedgerRepository implements the ledger repository interface using PostgreSQL
type LedgerRepository struct {
	txManager
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{txManager{pool: pool}}
}

// Currency operations

func (r *LedgerRepository) GetCurrency(ctx context.Context, code string) (*ledger.Currency, error) {
	var c ledger.Currency
	err := r.getQueryer(ctx).QueryRow(ctx,
		`SELECT code, name, decimals FROM currencies WHERE code = $1`, code,
	).Scan(&c.Code, &c.Name, &c.Decimals)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ledger.ErrCurrencyNotFound, code)
		}
		return nil, fmt.Errorf("failed to get currency: %w", err)
	}
	return &c, nil
}

// AddCurrency registers a currency; an existing code is left untouched
func (r *LedgerRepository) AddCurrency(ctx context.Context, c ledger.Currency) error {
	_, err := r.getQueryer(ctx).Exec(ctx,
		`INSERT INTO currencies (code, name, decimals) VALUES ($1, $2, $3) ON CONFLICT (code) DO NOTHING`,
		c.Code, c.Name, c.Decimals,
	)
	if err != nil {
		return fmt.Errorf("failed to add currency: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListCurrencies(ctx context.Context) ([]*ledger.Currency, error) {
	rows, err := r.getQueryer(ctx).Query(ctx, `SELECT code, name, decimals FROM currencies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Currency
	for rows.Next() {
		var c ledger.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.Decimals); err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Account operations

const accountColumns = `id, user_id, name, currency_code, type, subtype, is_fundamental, is_archived, created_at, updated_at`

// CreateAccount creates a new account in the database
func (r *LedgerRepository) CreateAccount(ctx context.Context, account *ledger.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.getQueryer(ctx).Exec(ctx, query,
		account.ID,
		account.UserID,
		account.Name,
		account.CurrencyCode,
		string(account.Type),
		subtypeValue(account.Subtype),
		account.IsFundamental,
		account.IsArchived,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return accountWriteError("create", err)
	}

	return nil
}

// UpdateAccount overwrites the mutable account fields
func (r *LedgerRepository) UpdateAccount(ctx context.Context, account *ledger.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, currency_code = $3, subtype = $4, is_archived = $5, updated_at = $6
		WHERE id = $1
	`

	tag, err := r.getQueryer(ctx).Exec(ctx, query,
		account.ID,
		account.Name,
		account.CurrencyCode,
		subtypeValue(account.Subtype),
		account.IsArchived,
		account.UpdatedAt,
	)
	if err != nil {
		return accountWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes an account. Entries keep accounts alive through the foreign key.
func (r *LedgerRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := r.getQueryer(ctx).Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		if code, _ := pgErrorCode(err); code == fkViolation {
			return ledger.ErrAccountHasEntries
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// GetAccount retrieves an account by ID
func (r *LedgerRepository) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	row := r.getQueryer(ctx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// FindAccountByName returns nil without error when the user has no such account
func (r *LedgerRepository) FindAccountByName(ctx context.Context, userID uuid.UUID, name string) (*ledger.Account, error) {
	row := r.getQueryer(ctx).QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE user_id = $1 AND lower(name) = lower($2) AND NOT is_fundamental
	`, userID, name)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find account by name: %w", err)
	}
	return account, nil
}

// FindFundamentalAccount returns nil without error when the account does not exist yet
func (r *LedgerRepository) FindFundamentalAccount(ctx context.Context, userID uuid.UUID, currencyCode string, accountType ledger.AccountType) (*ledger.Account, error) {
	row := r.getQueryer(ctx).QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE user_id = $1 AND currency_code = $2 AND type = $3 AND is_fundamental
	`, userID, currencyCode, string(accountType))
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find fundamental account: %w", err)
	}
	return account, nil
}

func (r *LedgerRepository) ListAccounts(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, error) {
	conditions := []string{"user_id = $1"}
	args := []any{filter.UserID}

	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.CurrencyCode != nil {
		args = append(args, *filter.CurrencyCode)
		conditions = append(conditions, fmt.Sprintf("currency_code = $%d", len(args)))
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "NOT is_archived")
	}
	if !filter.IncludeFundamental {
		conditions = append(conditions, "NOT is_fundamental")
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY name`
	rows, err := r.getQueryer(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (r *LedgerRepository) CountEntriesByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	var n int
	if err := r.getQueryer(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM entries WHERE account_id = $1`, accountID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Transaction operations

const transactionColumns = `id, user_id, description, effective_at, posted_at, reference, source,
	idempotency_key, exchange_rate::text, currency_code, budget_period_id, created_at, updated_at`

// CreateTransaction inserts the header and its entries. Call it inside BeginTx so the
// deferred balance trigger sees every entry before commit.
func (r *LedgerRepository) CreateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	q := r.getQueryer(ctx)

	var rate *string
	if tx.ExchangeRate != nil {
		s := tx.ExchangeRate.String()
		rate = &s
	}

	_, err := q.Exec(ctx, `
		INSERT INTO transactions (id, user_id, description, effective_at, posted_at, reference, source,
			idempotency_key, exchange_rate, currency_code, budget_period_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12, $13)
	`,
		tx.ID,
		tx.UserID,
		tx.Description,
		tx.EffectiveAt,
		tx.PostedAt,
		tx.Reference,
		tx.Source,
		tx.IdempotencyKey,
		rate,
		tx.CurrencyCode,
		tx.BudgetPeriodID,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for i, entry := range tx.Entries {
		_, err := q.Exec(ctx, `
			INSERT INTO entries (id, transaction_id, position, account_id, amount, currency_code, memo, category_id, created_at)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
		`,
			entry.ID,
			tx.ID,
			i,
			entry.AccountID,
			entry.Amount.String(), // NUMERIC(30,6) in DB
			entry.CurrencyCode,
			entry.Memo,
			entry.CategoryID,
			entry.CreatedAt,
		)
		if err != nil {
			if code, _ := pgErrorCode(err); code == fkViolation {
				return &ledger.EntryError{Index: i, Err: ledger.ErrAccountNotFound}
			}
			return fmt.Errorf("failed to insert entry %d: %w", i, err)
		}
	}

	return nil
}

// UpdateTransaction rewrites header fields and entry categories. Amounts and
// accounts of entries are immutable.
func (r *LedgerRepository) UpdateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	q := r.getQueryer(ctx)

	tag, err := q.Exec(ctx, `
		UPDATE transactions
		SET description = $2, effective_at = $3, reference = $4, budget_period_id = $5, updated_at = $6
		WHERE id = $1
	`, tx.ID, tx.Description, tx.EffectiveAt, tx.Reference, tx.BudgetPeriodID, tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrTransactionNotFound
	}

	for _, entry := range tx.Entries {
		if _, err := q.Exec(ctx,
			`UPDATE entries SET category_id = $3 WHERE id = $1 AND transaction_id = $2`,
			entry.ID, tx.ID, entry.CategoryID,
		); err != nil {
			return fmt.Errorf("failed to update entry %s: %w", entry.ID, err)
		}
	}
	return nil
}

func (r *LedgerRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	row := r.getQueryer(ctx).QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	if err := r.loadEntries(ctx, []*ledger.Transaction{tx}); err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions returns transactions newest first, with their entries
func (r *LedgerRepository) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	conditions := []string{"user_id = $1"}
	args := []any{filter.UserID}

	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		conditions = append(conditions, fmt.Sprintf("id IN (SELECT transaction_id FROM entries WHERE account_id = $%d)", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("effective_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("effective_at <= $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY effective_at DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.getQueryer(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	out := []*ledger.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.loadEntries(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadEntries attaches entries in their original order
func (r *LedgerRepository) loadEntries(ctx context.Context, txs []*ledger.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(txs))
	byID := make(map[uuid.UUID]*ledger.Transaction, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
		byID[tx.ID] = tx
	}

	rows, err := r.getQueryer(ctx).Query(ctx, `
		SELECT id, transaction_id, account_id, amount::text, currency_code, memo, category_id, created_at
		FROM entries
		WHERE transaction_id = ANY($1)
		ORDER BY transaction_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e ledger.Entry
		var amount string
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &amount, &e.CurrencyCode, &e.Memo, &e.CategoryID, &e.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan entry: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("invalid entry amount %q: %w", amount, err)
		}
		tx := byID[e.TransactionID]
		tx.Entries = append(tx.Entries, &e)
	}
	return rows.Err()
}

// Balance operations

func (r *LedgerRepository) GetAccountBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var sum string
	if err := r.getQueryer(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM entries WHERE account_id = $1`, accountID,
	).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get account balance: %w", err)
	}
	return decimal.NewFromString(sum)
}

func (r *LedgerRepository) ListBalances(ctx context.Context, userID uuid.UUID) ([]*ledger.AccountBalance, error) {
	rows, err := r.getQueryer(ctx).Query(ctx, `
		SELECT a.id, a.currency_code, COALESCE(SUM(e.amount), 0)::text
		FROM accounts a
		LEFT JOIN entries e ON e.account_id = a.id
		WHERE a.user_id = $1
		GROUP BY a.id, a.currency_code
		ORDER BY a.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var out []*ledger.AccountBalance
	for rows.Next() {
		var b ledger.AccountBalance
		var sum string
		if err := rows.Scan(&b.AccountID, &b.CurrencyCode, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		if b.Balance, err = decimal.NewFromString(sum); err != nil {
			return nil, fmt.Errorf("invalid balance %q: %w", sum, err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// Scanning helpers

func scanAccount(row pgx.Row) (*ledger.Account, error) {
	var a ledger.Account
	var subtype *string
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Name,
		&a.CurrencyCode,
		&a.Type,
		&subtype,
		&a.IsFundamental,
		&a.IsArchived,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if subtype != nil {
		s := ledger.AccountSubtype(*subtype)
		a.Subtype = &s
	}
	return &a, nil
}

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	var rate *string
	if err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Description,
		&tx.EffectiveAt,
		&tx.PostedAt,
		&tx.Reference,
		&tx.Source,
		&tx.IdempotencyKey,
		&rate,
		&tx.CurrencyCode,
		&tx.BudgetPeriodID,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if rate != nil {
		d, err := decimal.NewFromString(*rate)
		if err != nil {
			return nil, fmt.Errorf("invalid exchange rate %q: %w", *rate, err)
		}
		tx.ExchangeRate = &d
	}
	return &tx, nil
}

func subtypeValue(s *ledger.AccountSubtype) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func accountWriteError(op string, err error) error {
	code, constraint := pgErrorCode(err)
	switch {
	case code == uniqueViolation && constraint == "uq_accounts_user_name":
		return ledger.ErrDuplicateAccountName
	case code == fkViolation:
		return ledger.ErrCurrencyNotFound
	}
	return fmt.Errorf("failed to %s account: %w", op, err)
}

var _ ledger.Repository = (*LedgerRepository)(nil)
