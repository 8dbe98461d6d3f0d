package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/pkg/money"
)

// Calculator names used in configuration
const (
	CalculatorBestPrice = "best_price"
	CalculatorMedian    = "median"
	CalculatorAverage   = "average"
)

// RegisterCalculators adds the built-in calculators to the catalog
func RegisterCalculators(c *Catalog) {
	c.Register(CalculatorBestPrice, BestPriceCalculator{})
	c.Register(CalculatorMedian, MedianCalculator{})
	c.Register(CalculatorAverage, AverageCalculator{})
}

// BestPriceCalculator takes the cheapest ask for BUY quotes and the highest
// bid for SELL quotes. Mixed or untyped batches fall back to the median.
type BestPriceCalculator struct{}

func (BestPriceCalculator) Calculate(_ context.Context, _ *Source, _ *Pair, quotes []Quote) (*Calculation, error) {
	prices := quotePrices(quotes)
	if len(prices) == 0 {
		return nil, ErrNoQuotes
	}

	var rate decimal.Decimal
	method := "median"
	switch tradeTypeOf(quotes) {
	case TradeTypeBuy:
		rate, _ = money.Min(prices)
		method = "min"
	case TradeTypeSell:
		rate, _ = money.Max(prices)
		method = "max"
	default:
		rate, _ = money.Median(prices)
	}

	return calculation(CalculatorBestPrice, method, rate, quotes, prices), nil
}

// MedianCalculator takes the median price regardless of trade side
type MedianCalculator struct{}

func (MedianCalculator) Calculate(_ context.Context, _ *Source, _ *Pair, quotes []Quote) (*Calculation, error) {
	prices := quotePrices(quotes)
	if len(prices) == 0 {
		return nil, ErrNoQuotes
	}
	rate, _ := money.Median(prices)
	return calculation(CalculatorMedian, "median", rate, quotes, prices), nil
}

// AverageCalculator takes the arithmetic mean of all prices
type AverageCalculator struct{}

func (AverageCalculator) Calculate(_ context.Context, _ *Source, _ *Pair, quotes []Quote) (*Calculation, error) {
	prices := quotePrices(quotes)
	if len(prices) == 0 {
		return nil, ErrNoQuotes
	}
	rate, _ := money.Mean(prices)
	return calculation(CalculatorAverage, "mean", rate, quotes, prices), nil
}

// quotePrices keeps the positive prices of a batch
func quotePrices(quotes []Quote) []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(quotes))
	for _, q := range quotes {
		if q.Price.IsPositive() {
			prices = append(prices, q.Price)
		}
	}
	return prices
}

// tradeTypeOf returns the common trade type of the batch, or "" when mixed
func tradeTypeOf(quotes []Quote) TradeType {
	var tt TradeType
	for i, q := range quotes {
		if i == 0 {
			tt = q.TradeType
			continue
		}
		if q.TradeType != tt {
			return ""
		}
	}
	return tt
}

func calculation(strategy, method string, rate decimal.Decimal, quotes []Quote, prices []decimal.Decimal) *Calculation {
	lo, _ := money.Min(prices)
	hi, _ := money.Max(prices)
	return &Calculation{
		Rate: rate.Round(money.RateScale),
		Metadata: map[string]interface{}{
			"strategy":    strategy,
			"method":      method,
			"trade_type":  string(tradeTypeOf(quotes)),
			"quote_count": len(prices),
			"min_price":   money.FormatRate(lo),
			"max_price":   money.FormatRate(hi),
		},
	}
}
