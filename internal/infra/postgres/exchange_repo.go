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

	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
)

// ExchangeRepository implements exchange.Repository using PostgreSQL
type ExchangeRepository struct {
	txManager
}

// NewExchangeRepository creates a new PostgreSQL exchange repository
func NewExchangeRepository(pool *pgxpool.Pool) *ExchangeRepository {
	return &ExchangeRepository{txManager{pool: pool}}
}

// Sources

func (r *ExchangeRepository) CreateSource(ctx context.Context, s *exchange.Source) error {
	metadata := s.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	_, err := r.getQueryer(ctx).Exec(ctx, `
		INSERT INTO exchange_sources (id, key, name, type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.Key, s.Name, s.Type, metadata, s.CreatedAt)
	if err != nil {
		if code, _ := pgErrorCode(err); code == uniqueViolation {
			return fmt.Errorf("source %s already exists", s.Key)
		}
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

func (r *ExchangeRepository) GetSourceByKey(ctx context.Context, key string) (*exchange.Source, error) {
	var s exchange.Source
	err := r.getQueryer(ctx).QueryRow(ctx, `
		SELECT id, key, name, type, metadata, created_at FROM exchange_sources WHERE key = $1
	`, key).Scan(&s.ID, &s.Key, &s.Name, &s.Type, &s.Metadata, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", exchange.ErrSourceNotFound, key)
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &s, nil
}

func (r *ExchangeRepository) ListSources(ctx context.Context) ([]*exchange.Source, error) {
	rows, err := r.getQueryer(ctx).Query(ctx,
		`SELECT id, key, name, type, metadata, created_at FROM exchange_sources ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var out []*exchange.Source
	for rows.Next() {
		var s exchange.Source
		if err := rows.Scan(&s.ID, &s.Key, &s.Name, &s.Type, &s.Metadata, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Pairs

func (r *ExchangeRepository) CreatePair(ctx context.Context, p *exchange.Pair) error {
	_, err := r.getQueryer(ctx).Exec(ctx,
		`INSERT INTO exchange_currency_pairs (id, base, quote) VALUES ($1, $2, $3)`,
		p.ID, strings.ToUpper(p.Base), strings.ToUpper(p.Quote),
	)
	if err != nil {
		if code, _ := pgErrorCode(err); code == uniqueViolation {
			return fmt.Errorf("pair %s already exists", p.Key())
		}
		return fmt.Errorf("failed to create pair: %w", err)
	}
	return nil
}

func (r *ExchangeRepository) FindPair(ctx context.Context, base, quote string) (*exchange.Pair, error) {
	var p exchange.Pair
	err := r.getQueryer(ctx).QueryRow(ctx,
		`SELECT id, base, quote FROM exchange_currency_pairs WHERE base = $1 AND quote = $2`,
		strings.ToUpper(base), strings.ToUpper(quote),
	).Scan(&p.ID, &p.Base, &p.Quote)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exchange.ErrPairNotFound
		}
		return nil, fmt.Errorf("failed to find pair: %w", err)
	}
	return &p, nil
}

func (r *ExchangeRepository) GetPair(ctx context.Context, id uuid.UUID) (*exchange.Pair, error) {
	var p exchange.Pair
	err := r.getQueryer(ctx).QueryRow(ctx,
		`SELECT id, base, quote FROM exchange_currency_pairs WHERE id = $1`, id,
	).Scan(&p.ID, &p.Base, &p.Quote)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exchange.ErrPairNotFound
		}
		return nil, fmt.Errorf("failed to get pair: %w", err)
	}
	return &p, nil
}

func (r *ExchangeRepository) AttachPair(ctx context.Context, sourceID, pairID uuid.UUID) error {
	_, err := r.getQueryer(ctx).Exec(ctx, `
		INSERT INTO exchange_source_pairs (source_id, pair_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, sourceID, pairID)
	if err != nil {
		return fmt.Errorf("failed to attach pair: %w", err)
	}
	return nil
}

func (r *ExchangeRepository) ListSupportedPairs(ctx context.Context, sourceID uuid.UUID) ([]*exchange.Pair, error) {
	rows, err := r.getQueryer(ctx).Query(ctx, `
		SELECT p.id, p.base, p.quote
		FROM exchange_currency_pairs p
		JOIN exchange_source_pairs sp ON sp.pair_id = p.id
		WHERE sp.source_id = $1
		ORDER BY p.base || '/' || p.quote
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list supported pairs: %w", err)
	}
	defer rows.Close()

	var out []*exchange.Pair
	for rows.Next() {
		var p exchange.Pair
		if err := rows.Scan(&p.ID, &p.Base, &p.Quote); err != nil {
			return nil, fmt.Errorf("failed to scan pair: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *ExchangeRepository) IsPairSupported(ctx context.Context, sourceID, pairID uuid.UUID) (bool, error) {
	var ok bool
	err := r.getQueryer(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM exchange_source_pairs WHERE source_id = $1 AND pair_id = $2)
	`, sourceID, pairID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check pair support: %w", err)
	}
	return ok, nil
}

// Rates

// UpsertRate overwrites the rate for (pair, source, effective_at). On conflict the
// stored id and created_at are kept and copied back onto r.
func (r *ExchangeRepository) UpsertRate(ctx context.Context, rate *exchange.Rate) error {
	metadata := rate.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	err := r.getQueryer(ctx).QueryRow(ctx, `
		INSERT INTO exchange_rates (id, pair_id, source_id, rate, effective_at, retrieved_at, is_estimated, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (pair_id, source_id, effective_at) DO UPDATE SET
			rate = EXCLUDED.rate,
			retrieved_at = EXCLUDED.retrieved_at,
			is_estimated = EXCLUDED.is_estimated,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`,
		rate.ID,
		rate.PairID,
		rate.SourceID,
		rate.Rate.String(),
		rate.EffectiveAt,
		rate.RetrievedAt,
		rate.IsEstimated,
		metadata,
		rate.CreatedAt,
		rate.UpdatedAt,
	).Scan(&rate.ID, &rate.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert rate: %w", err)
	}
	return nil
}

const rateColumns = `id, pair_id, source_id, rate::text, effective_at, retrieved_at, is_estimated, metadata, created_at, updated_at`

func (r *ExchangeRepository) GetLatestRate(ctx context.Context, sourceID, pairID uuid.UUID) (*exchange.Rate, error) {
	row := r.getQueryer(ctx).QueryRow(ctx, `
		SELECT `+rateColumns+` FROM exchange_rates
		WHERE source_id = $1 AND pair_id = $2
		ORDER BY effective_at DESC
		LIMIT 1
	`, sourceID, pairID)
	rate, err := scanRate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exchange.ErrRateNotFound
		}
		return nil, fmt.Errorf("failed to get latest rate: %w", err)
	}
	return rate, nil
}

func (r *ExchangeRepository) ListRates(ctx context.Context, filter exchange.RateFilter) ([]*exchange.Rate, error) {
	conditions := []string{"TRUE"}
	var args []any

	if filter.SourceID != nil {
		args = append(args, *filter.SourceID)
		conditions = append(conditions, fmt.Sprintf("source_id = $%d", len(args)))
	}
	if filter.PairID != nil {
		args = append(args, *filter.PairID)
		conditions = append(conditions, fmt.Sprintf("pair_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("effective_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("effective_at <= $%d", len(args)))
	}

	query := `SELECT ` + rateColumns + ` FROM exchange_rates WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY effective_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.getQueryer(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	defer rows.Close()

	var out []*exchange.Rate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		out = append(out, rate)
	}
	return out, rows.Err()
}

func scanRate(row pgx.Row) (*exchange.Rate, error) {
	var rate exchange.Rate
	var value string
	if err := row.Scan(
		&rate.ID,
		&rate.PairID,
		&rate.SourceID,
		&value,
		&rate.EffectiveAt,
		&rate.RetrievedAt,
		&rate.IsEstimated,
		&rate.Metadata,
		&rate.CreatedAt,
		&rate.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", value, err)
	}
	rate.Rate = d
	return &rate, nil
}

var _ exchange.Repository = (*ExchangeRepository)(nil)
