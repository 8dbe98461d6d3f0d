package exchange

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Fetcher retrieves rates for the given pairs from one source
type Fetcher interface {
	Fetch(ctx context.Context, source *Source, pairs []*Pair) ([]FetchedRate, error)
}

// RateCalculator reduces a batch of quotes to a single rate
type RateCalculator interface {
	Calculate(ctx context.Context, source *Source, pair *Pair, quotes []Quote) (*Calculation, error)
}

// CalculatorResolver selects the calculator configured for (source, pair)
type CalculatorResolver interface {
	Calculator(source *Source, pair *Pair) (RateCalculator, error)
}

// Repository defines exchange persistence
type Repository interface {
	CreateSource(ctx context.Context, s *Source) error
	GetSourceByKey(ctx context.Context, key string) (*Source, error)
	ListSources(ctx context.Context) ([]*Source, error)

	CreatePair(ctx context.Context, p *Pair) error
	FindPair(ctx context.Context, base, quote string) (*Pair, error)
	GetPair(ctx context.Context, id uuid.UUID) (*Pair, error)
	AttachPair(ctx context.Context, sourceID, pairID uuid.UUID) error
	ListSupportedPairs(ctx context.Context, sourceID uuid.UUID) ([]*Pair, error)
	IsPairSupported(ctx context.Context, sourceID, pairID uuid.UUID) (bool, error)

	// UpsertRate inserts or overwrites the rate keyed by (pair, source, effective_at)
	UpsertRate(ctx context.Context, r *Rate) error
	GetLatestRate(ctx context.Context, sourceID, pairID uuid.UUID) (*Rate, error)
	ListRates(ctx context.Context, filter RateFilter) ([]*Rate, error)

	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}

// RateCache holds the latest rate per (source, pair)
type RateCache interface {
	GetRate(ctx context.Context, sourceKey, pairKey string) (*Rate, bool, error)
	SetRate(ctx context.Context, sourceKey, pairKey string, rate *Rate) error
}

// Metrics receives ingestion counters
type Metrics interface {
	SyncFinished(source, status string, duration time.Duration)
	RatesUpserted(source string, count int)
}
