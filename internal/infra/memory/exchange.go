package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
)

func (s *Store) CreateSource(ctx context.Context, src *exchange.Source) error {
	return s.write(ctx, func(st *state) error {
		for _, existing := range st.sources {
			if existing.Key == src.Key {
				return fmt.Errorf("source %s already exists", src.Key)
			}
		}
		st.sources[src.ID] = *src
		return nil
	})
}

func (s *Store) GetSourceByKey(ctx context.Context, key string) (*exchange.Source, error) {
	var out *exchange.Source
	s.read(ctx, func(st *state) {
		for _, src := range st.sources {
			if src.Key == key {
				src := src
				out = &src
				return
			}
		}
	})
	if out == nil {
		return nil, fmt.Errorf("%w: %s", exchange.ErrSourceNotFound, key)
	}
	return out, nil
}

func (s *Store) ListSources(ctx context.Context) ([]*exchange.Source, error) {
	var out []*exchange.Source
	s.read(ctx, func(st *state) {
		for _, src := range st.sources {
			src := src
			out = append(out, &src)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) CreatePair(ctx context.Context, p *exchange.Pair) error {
	return s.write(ctx, func(st *state) error {
		for _, existing := range st.pairs {
			if existing.Key() == p.Key() {
				return fmt.Errorf("pair %s already exists", p.Key())
			}
		}
		st.pairs[p.ID] = *p
		return nil
	})
}

func (s *Store) FindPair(ctx context.Context, base, quote string) (*exchange.Pair, error) {
	var out *exchange.Pair
	s.read(ctx, func(st *state) {
		for _, p := range st.pairs {
			if strings.EqualFold(p.Base, base) && strings.EqualFold(p.Quote, quote) {
				p := p
				out = &p
				return
			}
		}
	})
	if out == nil {
		return nil, exchange.ErrPairNotFound
	}
	return out, nil
}

func (s *Store) GetPair(ctx context.Context, id uuid.UUID) (*exchange.Pair, error) {
	var out *exchange.Pair
	s.read(ctx, func(st *state) {
		if p, ok := st.pairs[id]; ok {
			out = &p
		}
	})
	if out == nil {
		return nil, exchange.ErrPairNotFound
	}
	return out, nil
}

func (s *Store) AttachPair(ctx context.Context, sourceID, pairID uuid.UUID) error {
	return s.write(ctx, func(st *state) error {
		st.support[supportKey{sourceID, pairID}] = true
		return nil
	})
}

func (s *Store) ListSupportedPairs(ctx context.Context, sourceID uuid.UUID) ([]*exchange.Pair, error) {
	var out []*exchange.Pair
	s.read(ctx, func(st *state) {
		for k := range st.support {
			if k.sourceID != sourceID {
				continue
			}
			if p, ok := st.pairs[k.pairID]; ok {
				out = append(out, &p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (s *Store) IsPairSupported(ctx context.Context, sourceID, pairID uuid.UUID) (bool, error) {
	ok := false
	s.read(ctx, func(st *state) { ok = st.support[supportKey{sourceID, pairID}] })
	return ok, nil
}

func (s *Store) UpsertRate(ctx context.Context, r *exchange.Rate) error {
	return s.write(ctx, func(st *state) error {
		key := rateKey{r.PairID, r.SourceID, r.EffectiveAt.UnixMicro()}
		if existing, ok := st.rates[key]; ok {
			r.ID = existing.ID
			r.CreatedAt = existing.CreatedAt
		}
		st.rates[key] = *r
		return nil
	})
}

func (s *Store) GetLatestRate(ctx context.Context, sourceID, pairID uuid.UUID) (*exchange.Rate, error) {
	var out *exchange.Rate
	s.read(ctx, func(st *state) {
		for _, r := range st.rates {
			if r.SourceID != sourceID || r.PairID != pairID {
				continue
			}
			if out == nil || r.EffectiveAt.After(out.EffectiveAt) {
				r := r
				out = &r
			}
		}
	})
	if out == nil {
		return nil, exchange.ErrRateNotFound
	}
	return out, nil
}

func (s *Store) ListRates(ctx context.Context, filter exchange.RateFilter) ([]*exchange.Rate, error) {
	var out []*exchange.Rate
	s.read(ctx, func(st *state) {
		for _, r := range st.rates {
			if filter.SourceID != nil && r.SourceID != *filter.SourceID {
				continue
			}
			if filter.PairID != nil && r.PairID != *filter.PairID {
				continue
			}
			if filter.From != nil && r.EffectiveAt.Before(*filter.From) {
				continue
			}
			if filter.To != nil && r.EffectiveAt.After(*filter.To) {
				continue
			}
			r := r
			out = append(out, &r)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveAt.After(out[j].EffectiveAt) })
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// RateCount returns the number of stored rates, for tests
func (s *Store) RateCount(ctx context.Context) int {
	n := 0
	s.read(ctx, func(st *state) { n = len(st.rates) })
	return n
}

var _ exchange.Repository = (*Store)(nil)
