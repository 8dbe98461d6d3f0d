package exchange_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

func quotes(tradeType exchange.TradeType, prices ...string) []exchange.Quote {
	out := make([]exchange.Quote, len(prices))
	for i, p := range prices {
		out[i] = exchange.Quote{Price: decimal.RequireFromString(p), TradeType: tradeType}
	}
	return out
}

func TestBestPriceCalculator(t *testing.T) {
	mixed := append(quotes(exchange.TradeTypeBuy, "10.0", "10.5"), quotes(exchange.TradeTypeSell, "11.0", "12.0")...)

	tests := []struct {
		name     string
		quotes   []exchange.Quote
		wantRate string
		method   string
	}{
		{"buy takes the lowest price", quotes(exchange.TradeTypeBuy, "10.0", "10.5", "11.0"), "10.00000000", "min"},
		{"sell takes the highest price", quotes(exchange.TradeTypeSell, "10.0", "10.5", "11.0"), "11.00000000", "max"},
		{"untyped takes the median", quotes("", "11.0", "10.0", "10.5"), "10.50000000", "median"},
		{"mixed takes the median of an even count", mixed, "10.75000000", "median"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := exchange.BestPriceCalculator{}.Calculate(context.Background(), nil, nil, tt.quotes)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRate, money.FormatRate(calc.Rate))
			assert.Equal(t, exchange.CalculatorBestPrice, calc.Metadata["strategy"])
			assert.Equal(t, tt.method, calc.Metadata["method"])
		})
	}
}

func TestMedianAndAverageCalculators(t *testing.T) {
	q := quotes(exchange.TradeTypeBuy, "36.10", "36.40", "37.00", "36.20")

	median, err := exchange.MedianCalculator{}.Calculate(context.Background(), nil, nil, q)
	require.NoError(t, err)
	assert.Equal(t, "36.30000000", money.FormatRate(median.Rate))

	average, err := exchange.AverageCalculator{}.Calculate(context.Background(), nil, nil, q)
	require.NoError(t, err)
	assert.Equal(t, "36.42500000", money.FormatRate(average.Rate))
	assert.Equal(t, 4, average.Metadata["quote_count"])
	assert.Equal(t, "36.10000000", average.Metadata["min_price"])
	assert.Equal(t, "37.00000000", average.Metadata["max_price"])
}

func TestCalculators_RejectEmptyInput(t *testing.T) {
	calculators := []exchange.RateCalculator{
		exchange.BestPriceCalculator{},
		exchange.MedianCalculator{},
		exchange.AverageCalculator{},
	}
	for _, c := range calculators {
		_, err := c.Calculate(context.Background(), nil, nil, nil)
		assert.ErrorIs(t, err, exchange.ErrNoQuotes)

		_, err = c.Calculate(context.Background(), nil, nil, quotes(exchange.TradeTypeBuy, "0", "-1"))
		assert.ErrorIs(t, err, exchange.ErrNoQuotes, "non-positive prices are ignored")
	}
}
