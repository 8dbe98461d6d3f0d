package exchange_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
)

type nopFetcher struct{}

func (nopFetcher) Fetch(context.Context, *exchange.Source, []*exchange.Pair) ([]exchange.FetchedRate, error) {
	return nil, nil
}

func newResolver() *exchange.Resolver {
	catalog := exchange.NewCatalog()
	exchange.RegisterCalculators(catalog)
	catalog.Register("static", nopFetcher{})
	catalog.Register("not_a_component", "just a string")

	return exchange.NewResolver(catalog, exchange.ResolverConfig{
		Fetchers: map[string]string{
			"bcv":     "static",
			"broken":  "not_a_component",
			"missing": "unknown",
			"p2p":     "static",
		},
		Calculators: map[string]map[string]string{
			"p2p": {
				"*":        exchange.CalculatorMedian,
				"USDT/VES": exchange.CalculatorBestPrice,
			},
			"broken": {"*": "not_a_component"},
		},
	})
}

func TestResolver_Fetcher(t *testing.T) {
	r := newResolver()

	f, err := r.Fetcher(&exchange.Source{Key: "bcv"})
	require.NoError(t, err)
	assert.IsType(t, nopFetcher{}, f)

	tests := []struct {
		source  string
		wantErr error
	}{
		{"unconfigured", exchange.ErrFetcherNotConfigured},
		{"missing", exchange.ErrFetcherNotConfigured},
		{"broken", exchange.ErrInvalidFetcher},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := r.Fetcher(&exchange.Source{Key: tt.source})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolver_Calculator(t *testing.T) {
	r := newResolver()
	p2p := &exchange.Source{Key: "p2p"}

	c, err := r.Calculator(p2p, &exchange.Pair{Base: "USDT", Quote: "VES"})
	require.NoError(t, err)
	assert.IsType(t, exchange.BestPriceCalculator{}, c)

	c, err = r.Calculator(p2p, &exchange.Pair{Base: "USDT", Quote: "COP"})
	require.NoError(t, err)
	assert.IsType(t, exchange.MedianCalculator{}, c, "falls back to the source wildcard")

	overridden := &exchange.Source{
		Key: "p2p",
		Metadata: map[string]interface{}{
			"calculators": map[string]interface{}{"USDT/VES": exchange.CalculatorAverage},
		},
	}
	c, err = r.Calculator(overridden, &exchange.Pair{Base: "USDT", Quote: "VES"})
	require.NoError(t, err)
	assert.IsType(t, exchange.AverageCalculator{}, c, "source metadata wins")

	_, err = r.Calculator(&exchange.Source{Key: "bcv"}, &exchange.Pair{Base: "USD", Quote: "VES"})
	assert.ErrorIs(t, err, exchange.ErrCalculatorNotConfigured)

	_, err = r.Calculator(&exchange.Source{Key: "broken"}, &exchange.Pair{Base: "USD", Quote: "VES"})
	assert.ErrorIs(t, err, exchange.ErrInvalidCalculator)
}
