package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/kislikjeka/moneyledger/internal/infra/gateway"
	infraRedis "github.com/kislikjeka/moneyledger/internal/infra/redis"
	"github.com/kislikjeka/moneyledger/internal/infra/storage"
	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/internal/module/lending"
	"github.com/kislikjeka/moneyledger/internal/module/manual"
	"github.com/kislikjeka/moneyledger/internal/module/transfer"
	"github.com/kislikjeka/moneyledger/internal/platform/budget"
	"github.com/kislikjeka/moneyledger/internal/platform/category"
	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/internal/platform/fundamental"
	"github.com/kislikjeka/moneyledger/internal/platform/metrics"
	"github.com/kislikjeka/moneyledger/internal/platform/scheduler"
	"github.com/kislikjeka/moneyledger/internal/transport/httpapi"
	"github.com/kislikjeka/moneyledger/internal/transport/httpapi/handler"
	"github.com/kislikjeka/moneyledger/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/moneyledger/pkg/config"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

const version = "1.0.0"

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions(os.Stdout, cfg.Logger())
	log.Info("Starting moneyledger API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"storage", cfg.Storage,
	)

	exchangeCfg, err := config.LoadExchangeConfig(cfg.ExchangeConfigPath)
	if err != nil {
		log.Error("Failed to load exchange config", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Redis is optional: without it rates are read from the database and the
	// scheduler lock is process-local
	var (
		redisClient *redis.Client
		rateCache   exchange.RateCache
		syncLocker  scheduler.Locker = scheduler.NewLocalLocker()
	)
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		rateCache = infraRedis.NewCache(redisClient, log)
		syncLocker = infraRedis.NewLocker(redisClient)
		log.Info("Redis connection established")
	} else {
		log.Warn("REDIS_URL not configured, rate cache disabled and sync lock is local")
	}

	m := metrics.New()

	// Domain events: the provisioner runs before budget aggregation so that
	// fundamental accounts exist by the time anything reads them
	bus := ledger.NewBus(log)
	provisioner := fundamental.NewProvisioner(store.Ledger, log)
	provisioner.Register(bus)

	budgetSvc := budget.NewService(store.Budgets)
	categorySvc := category.NewService(store.Categories, budgetSvc)
	budget.NewAggregationListener(store.Budgets, budgetSvc, log).Register(bus)

	accountSvc := ledger.NewAccountService(store.Ledger, bus)
	ledgerSvc := ledger.NewService(store.Ledger, categorySvc, budgetSvc, bus).WithMetrics(m)

	manualTemplates := manual.NewHandler(ledgerSvc, accountSvc, provisioner, log)
	transferTemplate := transfer.NewHandler(ledgerSvc, accountSvc, provisioner, log)
	lendingTemplates := lending.NewHandler(ledgerSvc, accountSvc, log)

	// Exchange rate ingestion
	defs, resolverCfg := exchange.FromConfig(exchangeCfg)
	catalog := exchange.NewCatalog()
	resolver := exchange.NewResolver(catalog, resolverCfg)
	exchange.RegisterCalculators(catalog)
	gateway.RegisterFetchers(catalog, resolver, log)

	if err := exchange.Seed(ctx, store.Exchange, defs); err != nil {
		log.Error("Failed to seed exchange sources", "error", err)
		os.Exit(1)
	}
	exchangeSvc := exchange.NewService(store.Exchange, resolver, rateCache, m, log)

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		jobs, err := scheduler.JobsFromConfig(exchangeCfg)
		if err != nil {
			log.Error("Invalid exchange schedule", "error", err)
			os.Exit(1)
		}
		sched = scheduler.New(exchangeSvc, syncLocker, jobs, log)
	} else {
		log.Warn("SCHEDULER_ENABLED=false, exchange rates are only synced on demand")
	}

	// HTTP
	jwtSvc := middleware.NewJWTService(cfg.JWTSecret)
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitRPS*2)
	go limiter.Cleanup(ctx)

	checks := map[string]handler.DatabasePinger{}
	if store.Ping != nil {
		checks["database"] = handler.PingerFunc(store.Ping)
	}
	if redisClient != nil {
		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	r := httpapi.NewRouter(httpapi.Config{
		Logger:             log,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimiter:        limiter,
		JWTMiddleware:      middleware.JWTMiddleware(jwtSvc),
		MetricsMiddleware:  m.Middleware,
		MetricsHandler:     m.Handler(),
		HealthHandler:      handler.NewHealthHandler(version, checks),
		AccountHandler:     handler.NewAccountHandler(accountSvc, log),
		TransactionHandler: handler.NewTransactionHandler(ledgerSvc, log),
		TemplateHandler:    handler.NewTemplateHandler(manualTemplates, transferTemplate, lendingTemplates, log),
		CategoryHandler:    handler.NewCategoryHandler(categorySvc, log),
		BudgetHandler:      handler.NewBudgetHandler(budgetSvc, log),
		ExchangeHandler:    handler.NewExchangeHandler(exchangeSvc, 0, log),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // manual syncs can take up to a minute
		IdleTimeout:  60 * time.Second,
	}

	if sched != nil {
		go sched.Run(ctx)
		log.Info("Exchange scheduler started")
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	if sched != nil {
		sched.Stop()
		log.Info("Exchange scheduler stopped")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
