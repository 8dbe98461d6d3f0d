package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/internal/infra/memory"
	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/internal/module/lending"
	"github.com/kislikjeka/moneyledger/internal/module/manual"
	"github.com/kislikjeka/moneyledger/internal/module/transfer"
	"github.com/kislikjeka/moneyledger/internal/platform/budget"
	"github.com/kislikjeka/moneyledger/internal/platform/category"
	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/internal/platform/fundamental"
	"github.com/kislikjeka/moneyledger/internal/platform/metrics"
	"github.com/kislikjeka/moneyledger/internal/transport/httpapi"
	"github.com/kislikjeka/moneyledger/internal/transport/httpapi/handler"
	"github.com/kislikjeka/moneyledger/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

const testSecret = "test-secret-key-minimum-32-characters-long"

var publishedAt = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fixedFetcher struct{}

func (fixedFetcher) Fetch(_ context.Context, _ *exchange.Source, pairs []*exchange.Pair) ([]exchange.FetchedRate, error) {
	out := make([]exchange.FetchedRate, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, exchange.FetchedRate{
			Base:        p.Base,
			Quote:       p.Quote,
			Rate:        decimal.RequireFromString("36.5"),
			EffectiveAt: publishedAt,
			RetrievedAt: publishedAt.Add(time.Hour),
		})
	}
	return out, nil
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	token   string
	userID  uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	log := logger.New("test", io.Discard)

	store := memory.NewStore()
	for _, code := range []string{"USD", "EUR", "VES"} {
		require.NoError(t, store.AddCurrency(ctx, ledger.Currency{Code: code, Name: code, Decimals: 2}))
	}

	m := metrics.New()
	bus := ledger.NewBus(log)
	provisioner := fundamental.NewProvisioner(store, log)
	provisioner.Register(bus)

	budgets := budget.NewService(store)
	categories := category.NewService(store, budgets)
	budget.NewAggregationListener(store, budgets, log).Register(bus)

	accounts := ledger.NewAccountService(store, bus)
	ledgerSvc := ledger.NewService(store, categories, budgets, bus).WithMetrics(m)

	catalog := exchange.NewCatalog()
	exchange.RegisterCalculators(catalog)
	catalog.Register("fixed", fixedFetcher{})
	resolver := exchange.NewResolver(catalog, exchange.ResolverConfig{
		Fetchers:          map[string]string{"official": "fixed"},
		DefaultCalculator: exchange.CalculatorMedian,
	})
	require.NoError(t, exchange.Seed(ctx, store, []exchange.SourceDefinition{
		{Key: "official", Name: "Official", Type: "official", Pairs: []string{"USD/VES"}},
	}))
	exchangeSvc := exchange.NewService(store, resolver, nil, m, log)

	jwtSvc := middleware.NewJWTService(testSecret)
	userID := uuid.New()
	token, err := jwtSvc.GenerateToken(userID, time.Hour)
	require.NoError(t, err)

	router := httpapi.NewRouter(httpapi.Config{
		Logger:             log,
		AllowedOrigins:     []string{"http://localhost:5173"},
		RateLimiter:        middleware.NewRateLimiter(1000, 1000),
		JWTMiddleware:      middleware.JWTMiddleware(jwtSvc),
		MetricsMiddleware:  m.Middleware,
		MetricsHandler:     m.Handler(),
		HealthHandler:      handler.NewHealthHandler("test", nil),
		AccountHandler:     handler.NewAccountHandler(accounts, log),
		TransactionHandler: handler.NewTransactionHandler(ledgerSvc, log),
		TemplateHandler: handler.NewTemplateHandler(
			manual.NewHandler(ledgerSvc, accounts, provisioner, log),
			transfer.NewHandler(ledgerSvc, accounts, provisioner, log),
			lending.NewHandler(ledgerSvc, accounts, log),
			log,
		),
		CategoryHandler: handler.NewCategoryHandler(categories, log),
		BudgetHandler:   handler.NewBudgetHandler(budgets, log),
		ExchangeHandler: handler.NewExchangeHandler(exchangeSvc, time.Second, log),
	})

	return &testServer{t: t, handler: router, token: token, userID: userID}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createAccount(name, currency, accountType string, subtype *string) handler.AccountResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/accounts", handler.CreateAccountRequest{
		Name:         name,
		CurrencyCode: currency,
		Type:         accountType,
		Subtype:      subtype,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[handler.AccountResponse](s.t, rec)
}

func ptr[T any](v T) *T { return &v }

func rfc3339(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/health/detailed"} {
		t.Run(path, func(t *testing.T) {
			rec := s.do(http.MethodGet, path, nil)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}

	rec := s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "moneyledger_http_requests_total")
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	s.token = ""

	rec := s.do(http.MethodGet, "/api/v1/accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.token = "not-a-jwt"
	rec = s.do(http.MethodGet, "/api/v1/accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccounts_CRUD(t *testing.T) {
	s := newTestServer(t)

	cash := s.createAccount("Wallet", "USD", "asset", ptr("cash"))
	assert.Equal(t, "ASSET", cash.Type)
	require.NotNil(t, cash.Subtype)
	assert.Equal(t, "CASH", *cash.Subtype)
	assert.False(t, cash.IsFundamental)

	t.Run("duplicate name conflicts", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/accounts", handler.CreateAccountRequest{
			Name: "wallet", CurrencyCode: "USD", Type: "ASSET", Subtype: ptr("CASH"),
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "CONFLICT", decode[handler.ErrorResponse](t, rec).Code)
	})

	t.Run("fundamental accounts are provisioned but hidden by default", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/accounts", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]handler.AccountResponse](t, rec), 1)

		rec = s.do(http.MethodGet, "/api/v1/accounts?include_fundamental=true", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		all := decode[[]handler.AccountResponse](t, rec)
		assert.Greater(t, len(all), 1)
	})

	t.Run("update and get", func(t *testing.T) {
		rec := s.do(http.MethodPatch, "/api/v1/accounts/"+cash.ID, handler.UpdateAccountRequest{Name: ptr("Pocket")})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Pocket", decode[handler.AccountResponse](t, rec).Name)

		rec = s.do(http.MethodGet, "/api/v1/accounts/"+cash.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Pocket", decode[handler.AccountResponse](t, rec).Name)
	})

	t.Run("unknown and malformed ids", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/accounts/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = s.do(http.MethodGet, "/api/v1/accounts/nope", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete without entries", func(t *testing.T) {
		spare := s.createAccount("Spare", "EUR", "ASSET", ptr("BANK"))
		rec := s.do(http.MethodDelete, "/api/v1/accounts/"+spare.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestTemplates_IncomeExpenseBalance(t *testing.T) {
	s := newTestServer(t)
	cash := s.createAccount("Wallet", "USD", "ASSET", ptr("CASH"))
	now := time.Now().UTC().Truncate(time.Second)

	rec := s.do(http.MethodPost, "/api/v1/categories", handler.CreateCategoryRequest{Name: "Salary", Type: "income"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	salary := decode[handler.CategoryResponse](t, rec)

	rec = s.do(http.MethodPost, "/api/v1/transactions/income", handler.CashFlowRequest{
		AccountID:   cash.ID,
		Amount:      "100",
		Description: "March salary",
		EffectiveAt: rfc3339(now),
		CategoryID:  &salary.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	income := decode[handler.TransactionResponse](t, rec)
	require.Len(t, income.Entries, 2)
	assert.Equal(t, cash.ID, income.Entries[0].AccountID)
	assert.Equal(t, "100.000000", income.Entries[0].Amount)
	assert.Equal(t, "-100.000000", income.Entries[1].Amount)
	require.NotNil(t, income.Entries[1].CategoryID)
	assert.Equal(t, salary.ID, *income.Entries[1].CategoryID)

	rec = s.do(http.MethodPost, "/api/v1/transactions/expense", handler.CashFlowRequest{
		AccountID: cash.ID, Amount: "150", Description: "Too much", EffectiveAt: rfc3339(now),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INSUFFICIENT_BALANCE", decode[handler.ErrorResponse](t, rec).Code)

	rec = s.do(http.MethodPost, "/api/v1/transactions/expense", handler.CashFlowRequest{
		AccountID: cash.ID, Amount: "40.25", Description: "Groceries", EffectiveAt: rfc3339(now),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/accounts/"+cash.ID+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode[handler.BalanceResponse](t, rec)
	assert.Equal(t, "59.750000", balance.Balance)
	assert.Equal(t, "USD", balance.CurrencyCode)

	rec = s.do(http.MethodGet, "/api/v1/transactions?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[handler.TransactionListResponse](t, rec)
	assert.Len(t, page.Transactions, 1)
	assert.Equal(t, 1, page.Limit)

	t.Run("account with entries cannot be deleted", func(t *testing.T) {
		rec := s.do(http.MethodDelete, "/api/v1/accounts/"+cash.ID, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestTransactions_RawValidation(t *testing.T) {
	s := newTestServer(t)
	cash := s.createAccount("Wallet", "USD", "ASSET", ptr("CASH"))
	bank := s.createAccount("Bank", "USD", "ASSET", ptr("BANK"))
	effective := rfc3339(time.Now())

	tests := []struct {
		name      string
		entries   []handler.EntryRequest
		status    int
		code      string
		wantEntry *int
	}{
		{
			name: "unbalanced",
			entries: []handler.EntryRequest{
				{AccountID: cash.ID, Amount: "10"},
				{AccountID: bank.ID, Amount: "-5"},
			},
			status: http.StatusUnprocessableEntity,
			code:   "LEDGER_UNBALANCED",
		},
		{
			name: "currency mismatch points at the entry",
			entries: []handler.EntryRequest{
				{AccountID: cash.ID, Amount: "10", CurrencyCode: ptr("EUR")},
				{AccountID: bank.ID, Amount: "-10"},
			},
			status:    http.StatusBadRequest,
			code:      "VALIDATION_ERROR",
			wantEntry: ptr(0),
		},
		{
			name:    "single entry",
			entries: []handler.EntryRequest{{AccountID: cash.ID, Amount: "10"}},
			status:  http.StatusBadRequest,
			code:    "VALIDATION_ERROR",
		},
		{
			name: "balanced",
			entries: []handler.EntryRequest{
				{AccountID: cash.ID, Amount: "10.5"},
				{AccountID: bank.ID, Amount: "-10.5"},
			},
			status: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/transactions", handler.CreateTransactionRequest{
				Description: tt.name,
				EffectiveAt: effective,
				Entries:     tt.entries,
			})
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code == "" {
				return
			}
			resp := decode[handler.ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			if tt.wantEntry != nil {
				require.NotNil(t, resp.Entry)
				assert.Equal(t, *tt.wantEntry, *resp.Entry)
			}
		})
	}

	t.Run("unknown fields are rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(`{"description":"x","bogus":1}`))
		req.Header.Set("Authorization", "Bearer "+s.token)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTemplates_TransferAndLending(t *testing.T) {
	s := newTestServer(t)
	cash := s.createAccount("Wallet", "USD", "ASSET", ptr("CASH"))
	bank := s.createAccount("Bank", "USD", "ASSET", ptr("BANK"))
	loan := s.createAccount("Loan to Ana", "USD", "ASSET", ptr("LOAN_RECEIVABLE"))
	now := rfc3339(time.Now())

	rec := s.do(http.MethodPost, "/api/v1/transactions/income", handler.CashFlowRequest{
		AccountID: bank.ID, Amount: "500", Description: "Salary", EffectiveAt: now,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/transactions/transfer", handler.TransferRequest{
		FromAccountID: bank.ID, ToAccountID: cash.ID, Amount: "200", Description: "ATM", EffectiveAt: now,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/transactions/transfer", handler.TransferRequest{
		FromAccountID: bank.ID, ToAccountID: bank.ID, Amount: "1", Description: "Loop", EffectiveAt: now,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/transactions/lending", handler.LendingRequest{
		TargetAccountID: loan.ID, ContraAccountID: cash.ID, Amount: "50", Description: "Lunch money", EffectiveAt: now,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balances := map[string]string{}
	for _, b := range decode[[]handler.BalanceResponse](t, rec) {
		balances[b.AccountID] = b.Balance
	}
	assert.Equal(t, "300.000000", balances[bank.ID])
	assert.Equal(t, "150.000000", balances[cash.ID])
	assert.Equal(t, "50.000000", balances[loan.ID])

	// only the four loan kinds are routed; anything else falls through to
	// /transactions/{id}, which has no POST
	rec = s.do(http.MethodPost, "/api/v1/transactions/gift", handler.LendingRequest{})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBudgets_PeriodsAndSummary(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/budgets", handler.CreateBudgetRequest{Name: "Household"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[handler.BudgetResponse](t, rec)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec = s.do(http.MethodPost, "/api/v1/budgets/"+b.ID+"/periods/monthly", handler.GeneratePeriodsRequest{
		From: rfc3339(start), Count: 3, CurrencyCode: "USD", Amount: "400",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	periods := decode[[]handler.PeriodResponse](t, rec)
	require.Len(t, periods, 3)

	rec = s.do(http.MethodPost, "/api/v1/budgets/"+b.ID+"/periods", handler.AddPeriodRequest{
		StartAt: rfc3339(start.AddDate(0, 0, 10)), EndAt: rfc3339(start.AddDate(0, 0, 20)), CurrencyCode: "USD", Amount: "10",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/budgets/"+b.ID+"/summary?period_id="+periods[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[handler.SummaryResponse](t, rec)
	assert.Equal(t, "400.000000", summary.Budgeted)
	assert.Equal(t, periods[0].ID, summary.Period.ID)

	rec = s.do(http.MethodGet, "/api/v1/budgets/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExchange_SyncAndRead(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/exchange/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sources := decode[[]handler.SourceResponse](t, rec)
	require.Len(t, sources, 1)
	assert.Equal(t, []string{"USD/VES"}, sources[0].Pairs)

	rec = s.do(http.MethodGet, "/api/v1/exchange/sources/official/rates/USD/VES/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/exchange/sources/official/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	synced := decode[handler.SyncResponse](t, rec)
	require.Len(t, synced.Rates, 1)
	assert.Equal(t, "USD/VES", synced.Rates[0].Pair)
	assert.Equal(t, "36.50000000", synced.Rates[0].Rate)

	rec = s.do(http.MethodGet, "/api/v1/exchange/sources/official/rates/usd/ves/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	latest := decode[handler.RateResponse](t, rec)
	assert.Equal(t, "36.50000000", latest.Rate)
	assert.Equal(t, rfc3339(publishedAt), latest.EffectiveAt)

	rec = s.do(http.MethodPost, "/api/v1/exchange/sources/official/sync", handler.SyncRequest{Pairs: []string{"EUR/VES"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/exchange/sources/missing/sync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.token = ""
	rec = s.do(http.MethodPost, "/api/v1/exchange/sources/official/sync", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
