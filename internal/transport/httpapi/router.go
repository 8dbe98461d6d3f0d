package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kislikjeka/moneyledger/internal/transport/httpapi/handler"
	"github.com/kislikjeka/moneyledger/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger         *logger.Logger
	AllowedOrigins []string

	RateLimiter       *middleware.RateLimiter
	JWTMiddleware     func(http.Handler) http.Handler
	MetricsMiddleware func(http.Handler) http.Handler
	MetricsHandler    http.Handler

	HealthHandler      *handler.HealthHandler
	AccountHandler     *handler.AccountHandler
	TransactionHandler *handler.TransactionHandler
	TemplateHandler    *handler.TemplateHandler
	CategoryHandler    *handler.CategoryHandler
	BudgetHandler      *handler.BudgetHandler
	ExchangeHandler    *handler.ExchangeHandler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}
	if cfg.MetricsMiddleware != nil {
		r.Use(cfg.MetricsMiddleware)
	}

	// Health check endpoints (no authentication required)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health", cfg.HealthHandler.GetHealth)
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
		r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Exchange rates are shared reference data and readable without a token
		if cfg.ExchangeHandler != nil {
			r.Get("/exchange/sources", cfg.ExchangeHandler.ListSources)
			r.Get("/exchange/sources/{key}/rates/{base}/{quote}", cfg.ExchangeHandler.ListRates)
			r.Get("/exchange/sources/{key}/rates/{base}/{quote}/latest", cfg.ExchangeHandler.GetLatestRate)
		}

		if cfg.JWTMiddleware == nil {
			return
		}

		// Protected routes (require JWT authentication)
		r.Group(func(r chi.Router) {
			r.Use(cfg.JWTMiddleware)

			if cfg.AccountHandler != nil {
				r.Post("/accounts", cfg.AccountHandler.CreateAccount)
				r.Get("/accounts", cfg.AccountHandler.ListAccounts)
				r.Get("/accounts/{id}", cfg.AccountHandler.GetAccount)
				r.Patch("/accounts/{id}", cfg.AccountHandler.UpdateAccount)
				r.Delete("/accounts/{id}", cfg.AccountHandler.DeleteAccount)
				r.Get("/accounts/{id}/balance", cfg.AccountHandler.GetBalance)
				r.Get("/balances", cfg.AccountHandler.ListBalances)
			}

			if cfg.TransactionHandler != nil {
				r.Post("/transactions", cfg.TransactionHandler.CreateTransaction)
				r.Get("/transactions", cfg.TransactionHandler.ListTransactions)
				r.Get("/transactions/{id}", cfg.TransactionHandler.GetTransaction)
				r.Patch("/transactions/{id}", cfg.TransactionHandler.UpdateTransaction)
			}

			if cfg.TemplateHandler != nil {
				r.Post("/transactions/income", cfg.TemplateHandler.Income)
				r.Post("/transactions/expense", cfg.TemplateHandler.Expense)
				r.Post("/transactions/transfer", cfg.TemplateHandler.Transfer)
				r.Post("/transactions/{kind:lending|lending_repayment|debt|debt_payment}", cfg.TemplateHandler.Lending)
			}

			if cfg.CategoryHandler != nil {
				r.Post("/categories", cfg.CategoryHandler.CreateCategory)
				r.Get("/categories", cfg.CategoryHandler.ListCategories)
				r.Get("/categories/{id}", cfg.CategoryHandler.GetCategory)
				r.Patch("/categories/{id}", cfg.CategoryHandler.UpdateCategory)
				r.Delete("/categories/{id}", cfg.CategoryHandler.ArchiveCategory)
			}

			if cfg.BudgetHandler != nil {
				r.Route("/budgets", func(r chi.Router) {
					r.Post("/", cfg.BudgetHandler.CreateBudget)
					r.Get("/", cfg.BudgetHandler.ListBudgets)
					r.Get("/{id}", cfg.BudgetHandler.GetBudget)
					r.Post("/{id}/periods", cfg.BudgetHandler.AddPeriod)
					r.Get("/{id}/periods", cfg.BudgetHandler.ListPeriods)
					r.Post("/{id}/periods/monthly", cfg.BudgetHandler.GeneratePeriods)
					r.Get("/{id}/summary", cfg.BudgetHandler.GetSummary)
				})
			}

			if cfg.ExchangeHandler != nil {
				r.Post("/exchange/sources/{key}/sync", cfg.ExchangeHandler.Sync)
			}
		})
	})

	return r
}
