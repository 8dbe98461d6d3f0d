package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

// Service runs the exchange rate ingestion pipeline
type Service struct {
	repo     Repository
	resolver *Resolver
	cache    RateCache
	metrics  Metrics
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a new ingestion service. cache and metrics may be nil.
func NewService(repo Repository, resolver *Resolver, cache RateCache, metrics Metrics, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		cache:    cache,
		metrics:  metrics,
		logger:   log.WithField("component", "exchange"),
		now:      time.Now,
	}
}

// Sync fetches and stores rates for a source. With no pair keys every pair the
// source supports is synced; otherwise exactly the requested pairs are, and
// each must be supported and present in the fetched result.
// All rates of one run are written atomically.
func (s *Service) Sync(ctx context.Context, sourceKey string, pairKeys []string) (*SyncResult, error) {
	start := s.now()
	result, err := s.sync(ctx, sourceKey, pairKeys)

	duration := s.now().Sub(start)
	status := "success"
	if err != nil {
		status = "error"
		if IsRetryable(err) {
			status = "upstream_error"
		}
	}
	if s.metrics != nil {
		s.metrics.SyncFinished(sourceKey, status, duration)
	}

	log := s.logger.WithContext(ctx).WithField("source", sourceKey).WithDuration(duration)
	if err != nil {
		log.Error("exchange rate sync failed", "error", err, "retryable", IsRetryable(err))
		return nil, err
	}

	result.Duration = duration
	log.Info("exchange rate sync completed", "pairs", result.Pairs, "rates", len(result.Rates))
	return result, nil
}

func (s *Service) sync(ctx context.Context, sourceKey string, pairKeys []string) (*SyncResult, error) {
	source, err := s.repo.GetSourceByKey(ctx, sourceKey)
	if err != nil {
		return nil, err
	}

	fetcher, err := s.resolver.Fetcher(source)
	if err != nil {
		return nil, err
	}

	supported, err := s.repo.ListSupportedPairs(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list supported pairs: %w", err)
	}

	requested, explicit, err := selectPairs(supported, pairKeys)
	if err != nil {
		return nil, err
	}

	fetched, err := fetcher.Fetch(ctx, source, requested)
	if err != nil {
		return nil, err
	}

	if explicit {
		fetched, err = reconcile(fetched, requested)
		if err != nil {
			return nil, err
		}
	}

	rates, err := s.persist(ctx, source, fetched)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RatesUpserted(source.Key, len(rates))
	}
	s.refreshCache(ctx, source, rates)

	keys := make([]string, len(requested))
	for i, p := range requested {
		keys[i] = p.Key()
	}

	return &SyncResult{
		Source: source.Key,
		Pairs:  keys,
		Rates:  rates,
	}, nil
}

// selectPairs resolves the requested keys against the source's supported pairs
func selectPairs(supported []*Pair, pairKeys []string) ([]*Pair, bool, error) {
	if len(pairKeys) == 0 {
		return supported, false, nil
	}

	byKey := make(map[string]*Pair, len(supported))
	for _, p := range supported {
		byKey[p.Key()] = p
	}

	seen := make(map[string]bool, len(pairKeys))
	requested := make([]*Pair, 0, len(pairKeys))
	for _, raw := range pairKeys {
		base, quote, err := ParsePairKey(raw)
		if err != nil {
			return nil, true, fmt.Errorf("%w: %q", err, raw)
		}
		key := PairKey(base, quote)
		if seen[key] {
			continue
		}
		seen[key] = true

		p, ok := byKey[key]
		if !ok {
			return nil, true, fmt.Errorf("%w: %s", ErrUnsupportedPair, key)
		}
		requested = append(requested, p)
	}
	return requested, true, nil
}

// reconcile keeps only requested pairs and fails when any is absent
func reconcile(fetched []FetchedRate, requested []*Pair) ([]FetchedRate, error) {
	want := make(map[string]bool, len(requested))
	for _, p := range requested {
		want[p.Key()] = true
	}

	got := make(map[string]bool, len(fetched))
	kept := make([]FetchedRate, 0, len(fetched))
	for _, f := range fetched {
		key := f.PairKey()
		if !want[key] {
			continue
		}
		got[key] = true
		kept = append(kept, f)
	}

	var missing []string
	for key := range want {
		if !got[key] {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, missingPairsError(missing)
	}
	return kept, nil
}

// persist upserts every fetched rate inside one database transaction
func (s *Service) persist(ctx context.Context, source *Source, fetched []FetchedRate) ([]*Rate, error) {
	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.repo.RollbackTx(txCtx)
		}
	}()

	now := s.now().UTC()
	rates := make([]*Rate, 0, len(fetched))
	for _, f := range fetched {
		pair, err := s.repo.FindPair(txCtx, f.Base, f.Quote)
		if err != nil {
			if errors.Is(err, ErrPairNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrPairNotFound, f.PairKey())
			}
			return nil, fmt.Errorf("failed to find pair: %w", err)
		}

		ok, err := s.repo.IsPairSupported(txCtx, source.ID, pair.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check pair support: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedPair, pair.Key())
		}

		if !f.Rate.IsPositive() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRate, pair.Key())
		}

		retrievedAt := f.RetrievedAt
		if retrievedAt.IsZero() {
			retrievedAt = now
		}

		rate := &Rate{
			ID:          uuid.New(),
			PairID:      pair.ID,
			SourceID:    source.ID,
			Rate:        f.Rate.Round(money.RateScale),
			EffectiveAt: f.EffectiveAt.UTC(),
			RetrievedAt: retrievedAt.UTC(),
			IsEstimated: f.IsEstimated,
			Metadata:    f.Metadata,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.UpsertRate(txCtx, rate); err != nil {
			return nil, fmt.Errorf("failed to upsert rate %s: %w", pair.Key(), err)
		}
		rates = append(rates, rate)
	}

	if err := s.repo.CommitTx(txCtx); err != nil {
		return nil, fmt.Errorf("failed to commit rates: %w", err)
	}
	committed = true

	return rates, nil
}

// refreshCache writes the newest rate of each pair to the cache; failures are logged only
func (s *Service) refreshCache(ctx context.Context, source *Source, rates []*Rate) {
	if s.cache == nil {
		return
	}

	latest := make(map[uuid.UUID]*Rate)
	for _, r := range rates {
		if cur, ok := latest[r.PairID]; !ok || r.EffectiveAt.After(cur.EffectiveAt) {
			latest[r.PairID] = r
		}
	}

	for pairID, r := range latest {
		pair, err := s.repo.GetPair(ctx, pairID)
		if err != nil {
			s.logger.Warn("rate cache refresh skipped", "pair_id", pairID, "error", err)
			continue
		}
		if err := s.cache.SetRate(ctx, source.Key, pair.Key(), r); err != nil {
			s.logger.Warn("rate cache refresh failed", "pair", pair.Key(), "error", err)
		}
	}
}

// LatestRate returns the newest stored rate for a pair, cache first
func (s *Service) LatestRate(ctx context.Context, sourceKey, pairKey string) (*Rate, error) {
	base, quote, err := ParsePairKey(pairKey)
	if err != nil {
		return nil, err
	}
	pairKey = PairKey(base, quote)

	if s.cache != nil {
		if r, ok, err := s.cache.GetRate(ctx, sourceKey, pairKey); err == nil && ok {
			return r, nil
		}
	}

	source, err := s.repo.GetSourceByKey(ctx, sourceKey)
	if err != nil {
		return nil, err
	}
	pair, err := s.repo.FindPair(ctx, base, quote)
	if err != nil {
		return nil, err
	}

	r, err := s.repo.GetLatestRate(ctx, source.ID, pair.ID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRate(ctx, source.Key, pairKey, r); err != nil {
			s.logger.Warn("rate cache fill failed", "pair", pairKey, "error", err)
		}
	}
	return r, nil
}

// ListSources returns every configured source
func (s *Service) ListSources(ctx context.Context) ([]*Source, error) {
	return s.repo.ListSources(ctx)
}

// ListSupportedPairs returns the pairs a source publishes
func (s *Service) ListSupportedPairs(ctx context.Context, sourceKey string) ([]*Pair, error) {
	source, err := s.repo.GetSourceByKey(ctx, sourceKey)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSupportedPairs(ctx, source.ID)
}

// ListRates returns stored rates of a source, optionally for one pair
func (s *Service) ListRates(ctx context.Context, sourceKey string, pairKey string, from, to *time.Time, limit int) ([]*Rate, error) {
	source, err := s.repo.GetSourceByKey(ctx, sourceKey)
	if err != nil {
		return nil, err
	}

	filter := RateFilter{SourceID: &source.ID, From: from, To: to, Limit: limit}
	if pairKey != "" {
		base, quote, err := ParsePairKey(pairKey)
		if err != nil {
			return nil, err
		}
		pair, err := s.repo.FindPair(ctx, base, quote)
		if err != nil {
			return nil, err
		}
		filter.PairID = &pair.ID
	}
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}

	return s.repo.ListRates(ctx, filter)
}
