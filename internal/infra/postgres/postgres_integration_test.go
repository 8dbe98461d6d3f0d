//go:build integration

package postgres_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/internal/infra/postgres"
	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/internal/platform/budget"
	"github.com/kislikjeka/moneyledger/internal/platform/category"
	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/testutil/testdb"
)

var testDB *testdb.TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testdb.NewTestDB(ctx)
	if err != nil {
		panic("failed to create test database: " + err.Error())
	}

	code := m.Run()

	testDB.Close(ctx)
	os.Exit(code)
}

func setupTest(t *testing.T) context.Context {
	ctx := context.Background()
	require.NoError(t, testDB.Reset(ctx))
	return ctx
}

func newAccount(userID uuid.UUID, name, currency string, typ ledger.AccountType) *ledger.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &ledger.Account{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         name,
		CurrencyCode: currency,
		Type:         typ,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func createAccount(t *testing.T, ctx context.Context, repo *postgres.LedgerRepository, a *ledger.Account) *ledger.Account {
	require.NoError(t, repo.CreateAccount(ctx, a))
	return a
}

func newTransaction(userID uuid.UUID, at time.Time, legs map[uuid.UUID]string) *ledger.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	tx := &ledger.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Description: "test",
		EffectiveAt: at,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for accountID, amount := range legs {
		tx.Entries = append(tx.Entries, &ledger.Entry{
			ID:            uuid.New(),
			TransactionID: tx.ID,
			AccountID:     accountID,
			Amount:        decimal.RequireFromString(amount),
			CurrencyCode:  "USD",
			CreatedAt:     now,
		})
	}
	return tx
}

func commitTransaction(ctx context.Context, repo *postgres.LedgerRepository, tx *ledger.Transaction) error {
	txCtx, err := repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := repo.CreateTransaction(txCtx, tx); err != nil {
		_ = repo.RollbackTx(txCtx)
		return err
	}
	return repo.CommitTx(txCtx)
}

// Accounts

func TestLedgerRepository_CreateAccount_RoundTrip(t *testing.T) {
	ctx := setupTest(t)
	repo := postgres.NewLedgerRepository(testDB.Pool)

	subtype := ledger.SubtypeBank
	account := newAccount(uuid.New(), "Checking", "USD", ledger.AccountTypeAsset)
	account.Subtype = &subtype
	createAccount(t, ctx, repo, account)

	got, err := repo.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "Checking", got.Name)
	assert.Equal(t, ledger.AccountTypeAsset, got.Type)
	require.NotNil(t, got.Subtype)
	assert.Equal(t, ledger.SubtypeBank, *got.Subtype)
}

func TestLedgerRepository_CreateAccount_DuplicateNameIgnoresCase(t *testing.T) {
	ctx := setupTest(t)
	repo := postgres.NewLedgerRepository(testDB.Pool)
	userID := uuid.New()

	createAccount(t, ctx, repo, newAccount(userID, "Wallet", "USD", ledger.AccountTypeAsset))

	err := repo.CreateAccount(ctx, newAccount(userID, "wallet", "USD", ledger.AccountTypeAsset))
	assert.ErrorIs(t, err, ledger.ErrDuplicateAccountName)

	// another user may reuse the name
	err = repo.CreateAccount(ctx, newAccount(uuid.New(), "Wallet", "USD", ledger.AccountTypeAsset))
	assert.NoError(t, err)
}

func TestLedgerRepository_CreateAccount_UnknownCurrency(t *testing.T) {
	ctx := setupTest(t)
	repo := postgres.NewLedgerRepository(testDB.Pool)

	err := repo.CreateAccount(ctx, newAccount(uuid.New(), "Yen", "JPY", ledger.AccountTypeAsset))
	assert.ErrorIs(t, err, ledger.ErrCurrencyNotFound)
}

func TestLedgerRepository_FindAccounts(t *testing.T) {
	ctx := setupTest(t)
	repo := postgres.NewLedgerRepository(testDB.Pool)
	userID := uuid.New()

	cash := createAccount(t, ctx, repo, newAccount(userID, "Cash", "USD", ledger.AccountTypeAsset))
	fundamental := newAccount(userID, "USD Expense", "USD", ledger.AccountTypeExpense)
	fundamental.IsFundamental = true
	createAccount(t, ctx, repo, fundamental)

	found, err := repo.FindAccountByName(ctx, userID, "CASH")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, cash.ID, found.ID)

	missing, err := repo.FindAccountByName(ctx, userID, "Savings")
	require.NoError(t, err)
	assert.Nil(t, missing)

	got, err := repo.FindFundamentalAccount(ctx, userID, "USD", ledger.AccountTypeExpense)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, fundamental.ID, got.ID)

	none, err := repo.FindFundamentalAccount(ctx, userID, "EUR", ledger.AccountTypeExpense)
	require.NoError(t, err)
	assert.Nil(t, none)

	list, err := repo.ListAccounts(ctx, ledger.AccountFilter{UserID: userID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cash.ID, list[0].ID)

	list, err = repo.ListAccounts(ctx, ledger.AccountFilter{UserID: userID, IncludeFundamental: true})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestLedgerRepository_GetAccount_NotFound(t *testing.T) {
	ctx := setupTest(t)
	repo := postgres.NewLedgerRepository(testDB.Pool)

	_, err := repo.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

// Transactions

func TestLedgerRepository_CreateTransaction_Balances(t *testing.T) {
	ctx := setupTest(t)
	repo := postgres.NewLedgerRepository(testDB.Pool)
	userID := uuid.New()

	cash := createAccount(t, ctx, repo, newAccount(userID, "Cash", "USD", ledger.AccountTypeAsset))
	food := createAccount(t, ctx, repo, newAccount(userID, "Food", "USD", ledger.AccountTypeExpense))

	tx := newTransaction(userID, time.Now().UTC(), map[uuid.UUID]string{
		cash.ID: "-12.345678",
		food.ID: "12.345678",
	})
	require.NoError(t, commitTransaction(ctx, repo, tx))

	balance, err := repo.GetAccountBalance(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("-12.345678").Equal(balance), "got %s", balance)

	got, err := repo.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	for i := range tx.Entries {
		assert.Equal(t, tx.Entries[i].ID, got.Entries[i].ID, "entry order must be preserved")
	}
	assert.True(t, got.IsBalanced())

	count, err := repo.CountEntriesByAccount(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	balances, err := repo.ListBalances(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, balances, 2)
}

func TestLedgerRepository_CreateTransaction_UnbalancedRejectedAtCommit(t *testing.T) {
	ctx := setupTest(t)
	repo := postgres.NewLedgerRepository(testDB.Pool)
	userID := uuid.New()

	cash := createAccount(t, ctx, repo, newAccount(userID, "Cash", "USD", ledger.AccountTypeAsset))
	food := createAccount(t, ctx, repo, newAccount(userID, "Food", "USD", ledger.AccountTypeExpense))

	tx := newTransaction(userID, time.Now().UTC(), map[uuid.UUID]string{
		cash.ID: "-10",
		food.ID: "9.99",
	})
	require.Error(t, commitTransaction(ctx, repo, tx))

	_, err := repo.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestLedgerRepository_DeleteAccount_WithEntries(t *testing.T) {
	ctx := setupTest(t)
	repo := postgres.NewLedgerRepository(testDB.Pool)
	userID := uuid.New()

	cash := createAccount(t, ctx, repo, newAccount(userID, "Cash", "USD", ledger.AccountTypeAsset))
	food := createAccount(t, ctx, repo, newAccount(userID, "Food", "USD", ledger.AccountTypeExpense))
	require.NoError(t, commitTransaction(ctx, repo, newTransaction(userID, time.Now().UTC(), map[uuid.UUID]string{
		cash.ID: "-1",
		food.ID: "1",
	})))

	assert.ErrorIs(t, repo.DeleteAccount(ctx, cash.ID), ledger.ErrAccountHasEntries)
}

func TestLedgerRepository_ListTransactions_NewestFirst(t *testing.T) {
	ctx := setupTest(t)
	repo := postgres.NewLedgerRepository(testDB.Pool)
	userID := uuid.New()

	cash := createAccount(t, ctx, repo, newAccount(userID, "Cash", "USD", ledger.AccountTypeAsset))
	food := createAccount(t, ctx, repo, newAccount(userID, "Food", "USD", ledger.AccountTypeExpense))

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		tx := newTransaction(userID, base.AddDate(0, 0, i), map[uuid.UUID]string{cash.ID: "-1", food.ID: "1"})
		require.NoError(t, commitTransaction(ctx, repo, tx))
		ids = append(ids, tx.ID)
	}

	got, err := repo.ListTransactions(ctx, ledger.TransactionFilter{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[1], got[1].ID)
	assert.Len(t, got[0].Entries, 2)

	got, err = repo.ListTransactions(ctx, ledger.TransactionFilter{UserID: userID, Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ids[0], got[0].ID)
}

// Categories and budgets

func TestCategoryRepository_DuplicateNameAndLookup(t *testing.T) {
	ctx := setupTest(t)
	repo := postgres.NewCategoryRepository(testDB.Pool)
	userID := uuid.New()
	now := time.Now().UTC()

	groceries := &category.Category{
		ID: uuid.New(), UserID: userID, Name: "Groceries", Type: category.TypeExpense,
		IsReportable: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.CreateCategory(ctx, groceries))

	dup := *groceries
	dup.ID = uuid.New()
	dup.Name = "GROCERIES"
	assert.ErrorIs(t, repo.CreateCategory(ctx, &dup), category.ErrDuplicateName)

	found, err := repo.FindCategoryByName(ctx, userID, "groceries")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, groceries.ID, found.ID)

	_, err = repo.GetCategory(ctx, uuid.New())
	assert.ErrorIs(t, err, ledger.ErrCategoryNotFound)
}

func TestBudgetRepository_PeriodsAndSpending(t *testing.T) {
	ctx := setupTest(t)
	budgets := postgres.NewBudgetRepository(testDB.Pool)
	categories := postgres.NewCategoryRepository(testDB.Pool)
	ledgerRepo := postgres.NewLedgerRepository(testDB.Pool)
	userID := uuid.New()
	now := time.Now().UTC()

	b := &budget.Budget{ID: uuid.New(), UserID: userID, Name: "Household", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, budgets.CreateBudget(ctx, b))

	march := &budget.Period{
		ID:           uuid.New(),
		BudgetID:     b.ID,
		StartAt:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndAt:        time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
		CurrencyCode: "USD",
		Amount:       decimal.NewFromInt(500),
		CreatedAt:    now,
	}
	require.NoError(t, budgets.CreatePeriod(ctx, march))

	overlapping := *march
	overlapping.ID = uuid.New()
	overlapping.StartAt = march.EndAt
	overlapping.EndAt = march.EndAt.AddDate(0, 1, 0)
	assert.ErrorIs(t, budgets.CreatePeriod(ctx, &overlapping), budget.ErrPeriodOverlap)

	covering, err := budgets.FindPeriodCovering(ctx, b.ID, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, covering)
	assert.Equal(t, march.ID, covering.ID)

	none, err := budgets.FindPeriodCovering(ctx, b.ID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, none)

	groceries := &category.Category{
		ID: uuid.New(), UserID: userID, Name: "Groceries", Type: category.TypeExpense,
		BudgetID: &b.ID, IsReportable: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, categories.CreateCategory(ctx, groceries))

	cash := createAccount(t, ctx, ledgerRepo, newAccount(userID, "Cash", "USD", ledger.AccountTypeAsset))
	food := createAccount(t, ctx, ledgerRepo, newAccount(userID, "Food", "USD", ledger.AccountTypeExpense))

	tx := newTransaction(userID, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), map[uuid.UUID]string{
		cash.ID: "-42.50",
		food.ID: "42.50",
	})
	for _, e := range tx.Entries {
		e.CategoryID = &groceries.ID
	}
	require.NoError(t, commitTransaction(ctx, ledgerRepo, tx))

	spent, err := budgets.SumBudgetSpending(ctx, b.ID, "USD", march.StartAt, march.EndAt)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("42.5").Equal(spent), "a transaction with both legs tagged counts once, got %s", spent)

	// the category sits on the asset leg only
	checking := createAccount(t, ctx, ledgerRepo, newAccount(userID, "Checking", "USD", ledger.AccountTypeAsset))
	assetTagged := newTransaction(userID, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), map[uuid.UUID]string{
		checking.ID: "-80",
		food.ID:     "80",
	})
	for _, e := range assetTagged.Entries {
		if e.AccountID == checking.ID {
			e.CategoryID = &groceries.ID
		}
	}
	require.NoError(t, commitTransaction(ctx, ledgerRepo, assetTagged))

	spent, err = budgets.SumBudgetSpending(ctx, b.ID, "USD", march.StartAt, march.EndAt)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("122.5").Equal(spent), "got %s", spent)

	agg := &budget.CachedAggregate{
		OwnerType: budget.OwnerTypeBudget, OwnerID: b.ID, Key: budget.KeySpent,
		Scope: march.ID.String(), Value: spent, ComputedAt: now,
	}
	require.NoError(t, budgets.UpsertAggregate(ctx, agg))
	agg.Value = decimal.NewFromInt(1)
	require.NoError(t, budgets.UpsertAggregate(ctx, agg))

	aggs, err := budgets.ListAggregates(ctx, budget.OwnerTypeBudget, b.ID, march.ID.String())
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.True(t, decimal.NewFromInt(1).Equal(aggs[0].Value))
}

func TestBudgetService_ConcurrentOverlappingPeriodsAdmitOne(t *testing.T) {
	ctx := setupTest(t)
	svc := budget.NewService(postgres.NewBudgetRepository(testDB.Pool))
	userID := uuid.New()

	b, err := svc.CreateBudget(ctx, userID, "Household")
	require.NoError(t, err)

	const workers = 8
	var (
		wg      sync.WaitGroup
		created atomic.Int32
		errs    = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every request covers April 15th
			start := time.Date(2024, 4, 1+i, 0, 0, 0, 0, time.UTC)
			_, err := svc.AddPeriod(ctx, userID, b.ID, budget.AddPeriodRequest{
				StartAt: start, EndAt: start.AddDate(0, 0, 20), CurrencyCode: "USD", Amount: decimal.NewFromInt(100),
			})
			if err != nil {
				errs <- err
				return
			}
			created.Add(1)
		}(i)
	}
	wg.Wait()
	close(errs)

	assert.Equal(t, int32(1), created.Load())
	for err := range errs {
		assert.ErrorIs(t, err, budget.ErrPeriodOverlap)
	}

	periods, err := svc.ListPeriods(ctx, userID, b.ID)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

func TestBudgetPeriods_ExclusionConstraintRejectsOverlap(t *testing.T) {
	ctx := setupTest(t)
	budgets := postgres.NewBudgetRepository(testDB.Pool)
	now := time.Now().UTC()

	b := &budget.Budget{ID: uuid.New(), UserID: uuid.New(), Name: "Household", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, budgets.CreateBudget(ctx, b))

	insert := `INSERT INTO budget_periods (id, budget_id, start_at, end_at, currency_code, amount)
		VALUES ($1, $2, $3, $4, 'USD', 100)`
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := testDB.Pool.Exec(ctx, insert, uuid.New(), b.ID, start, start.AddDate(0, 1, 0))
	require.NoError(t, err)

	// shares only the boundary instant
	_, err = testDB.Pool.Exec(ctx, insert, uuid.New(), b.ID, start.AddDate(0, 1, 0), start.AddDate(0, 2, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget_periods_no_overlap")
}

// Exchange

func TestExchangeRepository_UpsertRateKeepsIdentity(t *testing.T) {
	ctx := setupTest(t)
	repo := postgres.NewExchangeRepository(testDB.Pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	src := &exchange.Source{
		ID: uuid.New(), Key: "bcv", Name: "Banco Central de Venezuela", Type: exchange.SourceTypeOfficial,
		Metadata: map[string]interface{}{"url": "https://www.bcv.org.ve/"}, CreatedAt: now,
	}
	require.NoError(t, repo.CreateSource(ctx, src))
	pair := &exchange.Pair{ID: uuid.New(), Base: "USD", Quote: "VES"}
	require.NoError(t, repo.CreatePair(ctx, pair))
	require.NoError(t, repo.AttachPair(ctx, src.ID, pair.ID))
	require.NoError(t, repo.AttachPair(ctx, src.ID, pair.ID))

	supported, err := repo.IsPairSupported(ctx, src.ID, pair.ID)
	require.NoError(t, err)
	assert.True(t, supported)

	effective := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	first := &exchange.Rate{
		ID: uuid.New(), PairID: pair.ID, SourceID: src.ID, Rate: decimal.RequireFromString("36.12345678"),
		EffectiveAt: effective, RetrievedAt: now, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.UpsertRate(ctx, first))

	second := &exchange.Rate{
		ID: uuid.New(), PairID: pair.ID, SourceID: src.ID, Rate: decimal.RequireFromString("36.5"),
		EffectiveAt: effective, RetrievedAt: now.Add(time.Minute), CreatedAt: now.Add(time.Minute), UpdatedAt: now.Add(time.Minute),
	}
	require.NoError(t, repo.UpsertRate(ctx, second))
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	latest, err := repo.GetLatestRate(ctx, src.ID, pair.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("36.5").Equal(latest.Rate))

	rates, err := repo.ListRates(ctx, exchange.RateFilter{SourceID: &src.ID})
	require.NoError(t, err)
	assert.Len(t, rates, 1)

	got, err := repo.GetSourceByKey(ctx, "bcv")
	require.NoError(t, err)
	assert.Equal(t, "https://www.bcv.org.ve/", got.StringOption("url", ""))

	_, err = repo.GetSourceByKey(ctx, "missing")
	assert.ErrorIs(t, err, exchange.ErrSourceNotFound)

	_, err = repo.GetLatestRate(ctx, src.ID, uuid.New())
	assert.ErrorIs(t, err, exchange.ErrRateNotFound)
}

func TestNewPool_SessionSettings(t *testing.T) {
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, postgres.Config{URL: testDB.ConnStr, MaxConns: 2, StatementTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer db.Close()

	var tz, app, timeout string
	require.NoError(t, db.QueryRow(ctx, "SELECT current_setting('TimeZone'), current_setting('application_name'), current_setting('statement_timeout')").
		Scan(&tz, &app, &timeout))
	assert.Equal(t, "UTC", tz)
	assert.Equal(t, "moneyledger", app)
	assert.Equal(t, "5s", timeout)

	assert.NoError(t, db.Health(ctx))

	_, err = postgres.NewPool(ctx, postgres.Config{URL: "://not-a-url"})
	assert.Error(t, err)
}
