package exchange

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Source types
const (
	SourceTypeOfficial = "official"
	SourceTypeP2P      = "p2p"
)

// Source is an external publisher of exchange rates
type Source struct {
	ID        uuid.UUID
	Key       string
	Name      string
	Type      string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// Pair is a base/quote currency pair, e.g. USD/VES
type Pair struct {
	ID    uuid.UUID
	Base  string
	Quote string
}

// Key returns the "BASE/QUOTE" identifier of the pair
func (p *Pair) Key() string {
	return PairKey(p.Base, p.Quote)
}

// PairKey builds a "BASE/QUOTE" identifier
func PairKey(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// ParsePairKey splits a "BASE/QUOTE" identifier
func ParsePairKey(key string) (base, quote string, err error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(key)), "/")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) == 0 {
		return "", "", ErrInvalidPairKey
	}
	return parts[0], parts[1], nil
}

// Rate is a persisted exchange rate, unique per (pair, source, effective_at)
type Rate struct {
	ID          uuid.UUID
	PairID      uuid.UUID
	SourceID    uuid.UUID
	Rate        decimal.Decimal
	EffectiveAt time.Time
	RetrievedAt time.Time
	IsEstimated bool
	Metadata    map[string]interface{}
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FetchedRate is a rate as returned by a fetcher, before it is tied to stored rows
type FetchedRate struct {
	Base        string
	Quote       string
	Rate        decimal.Decimal
	EffectiveAt time.Time
	RetrievedAt time.Time
	IsEstimated bool
	Metadata    map[string]interface{}
}

// PairKey returns the "BASE/QUOTE" identifier of the fetched rate
func (f *FetchedRate) PairKey() string {
	return PairKey(f.Base, f.Quote)
}

// TradeType is the side of a marketplace advertisement
type TradeType string

const (
	TradeTypeBuy  TradeType = "BUY"
	TradeTypeSell TradeType = "SELL"
)

// Quote is one raw marketplace price
type Quote struct {
	Price     decimal.Decimal
	TradeType TradeType
	Available decimal.Decimal
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	Merchant  string
}

// Calculation is the rate a calculator derived from a batch of quotes
type Calculation struct {
	Rate     decimal.Decimal
	Metadata map[string]interface{}
}

// RateFilter narrows rate listings
type RateFilter struct {
	SourceID *uuid.UUID
	PairID   *uuid.UUID
	From     *time.Time
	To       *time.Time
	Limit    int
}

// SyncResult summarizes one ingestion run
type SyncResult struct {
	Source   string
	Pairs    []string
	Rates    []*Rate
	Duration time.Duration
}

// StringOption reads a string from the source metadata
func (s *Source) StringOption(key, fallback string) string {
	if v, ok := s.Metadata[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// IntOption reads an integer from the source metadata. JSON round trips turn
// numbers into float64, so both shapes are accepted.
func (s *Source) IntOption(key string, fallback int) int {
	switch v := s.Metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// DurationOption reads a duration such as "30s" from the source metadata
func (s *Source) DurationOption(key string, fallback time.Duration) time.Duration {
	if v, ok := s.Metadata[key].(string); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// StringsOption reads a list of strings from the source metadata
func (s *Source) StringsOption(key string, fallback []string) []string {
	switch v := s.Metadata[key].(type) {
	case []string:
		if len(v) > 0 {
			return v
		}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
