// Package testdb starts a migrated PostgreSQL container for integration tests.
package testdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kislikjeka/moneyledger/internal/infra/postgres"
)

// tables lists every migrated table, children first
var tables = []string{
	"exchange_rates",
	"exchange_source_pairs",
	"exchange_currency_pairs",
	"exchange_sources",
	"cached_aggregates",
	"entries",
	"transactions",
	"budget_periods",
	"categories",
	"budgets",
	"accounts",
}

// TestDB is a running container plus a pool opened the way the server opens it
type TestDB struct {
	Container *tcpostgres.PostgresContainer
	DB        *postgres.DB
	Pool      *pgxpool.Pool
	ConnStr   string
}

// NewTestDB starts postgres:16 with every up migration applied
func NewTestDB(ctx context.Context) (*TestDB, error) {
	scripts, err := upMigrations()
	if err != nil {
		return nil, err
	}

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("moneyledger_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.WithInitScripts(scripts...),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(120*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	db, err := postgres.NewPool(ctx, postgres.Config{URL: connStr, MaxConns: 10, StatementTimeout: 30 * time.Second})
	if err != nil {
		container.Terminate(ctx)
		return nil, err
	}

	return &TestDB{
		Container: container,
		DB:        db,
		Pool:      db.Pool,
		ConnStr:   connStr,
	}, nil
}

// Reset truncates every table. Seeded currencies are kept.
func (db *TestDB) Reset(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE"); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

// Close closes the pool and terminates the container
func (db *TestDB) Close(ctx context.Context) error {
	if db.DB != nil {
		db.DB.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// upMigrations returns the .up.sql files of the repository's migrations
// directory in version order
func upMigrations() ([]string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("failed to locate testdb source file")
	}
	root := filepath.Dir(filepath.Dir(filepath.Dir(filename)))

	scripts, err := filepath.Glob(filepath.Join(root, "migrations", "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no migrations found under %s", filepath.Join(root, "migrations"))
	}
	sort.Strings(scripts)
	return scripts, nil
}
