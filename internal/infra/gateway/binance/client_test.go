package binance_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/internal/infra/gateway/binance"
	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

func testLogger() *logger.Logger {
	return logger.New("development", io.Discard)
}

type searchBody struct {
	Asset     string `json:"asset"`
	Fiat      string `json:"fiat"`
	TradeType string `json:"tradeType"`
	Page      int    `json:"page"`
	Rows      int    `json:"rows"`
}

// marketplace serves pages of advertisements keyed by trade type
type marketplace struct {
	mu       sync.Mutex
	requests []searchBody
	prices   map[string][]string
	status   int
}

func (m *marketplace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, body)
	m.mu.Unlock()

	if m.status != 0 {
		w.WriteHeader(m.status)
		return
	}

	all := m.prices[body.TradeType]
	start := (body.Page - 1) * body.Rows
	end := start + body.Rows
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}

	data := make([]map[string]interface{}, 0, end-start)
	for i, p := range all[start:end] {
		data = append(data, map[string]interface{}{
			"adv": map[string]string{
				"price":                p,
				"tradeType":            body.TradeType,
				"surplusAmount":        "100.00",
				"minSingleTransAmount": "500",
				"maxSingleTransAmount": "10000",
			},
			"advertiser": map[string]string{"nickName": fmt.Sprintf("merchant-%d", start+i)},
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    "000000",
		"data":    data,
		"total":   len(all),
		"success": true,
	})
}

func newFetcher(t *testing.T, m *marketplace) *binance.Fetcher {
	t.Helper()
	server := httptest.NewServer(m)
	t.Cleanup(server.Close)

	catalog := exchange.NewCatalog()
	exchange.RegisterCalculators(catalog)
	resolver := exchange.NewResolver(catalog, exchange.ResolverConfig{
		Calculators: map[string]map[string]string{"p2p": {"*": exchange.CalculatorBestPrice}},
	})

	f := binance.NewFetcher(resolver, testLogger())
	f.SetBaseURL(server.URL)
	f.SetClock(func() time.Time { return time.Date(2026, 10, 14, 15, 4, 37, 0, time.UTC) })
	return f
}

var usdtVES = []*exchange.Pair{{Base: "USDT", Quote: "VES"}}

func TestFetcher_BestBuyPriceAcrossPages(t *testing.T) {
	m := &marketplace{prices: map[string][]string{
		"BUY": {"37.10", "36.95", "37.40", "36.80", "37.00"},
	}}
	f := newFetcher(t, m)

	source := &exchange.Source{Key: "p2p", Metadata: map[string]interface{}{
		"rows":                2,
		"max_pages":           float64(5),
		"requests_per_second": 100,
	}}
	rates, err := f.Fetch(context.Background(), source, usdtVES)
	require.NoError(t, err)
	require.Len(t, rates, 1)

	r := rates[0]
	assert.Equal(t, "36.80000000", money.FormatRate(r.Rate), "cheapest ask")
	assert.True(t, r.IsEstimated)
	assert.Equal(t, time.Date(2026, 10, 14, 15, 4, 0, 0, time.UTC), r.EffectiveAt, "effective at the retrieval minute")
	assert.Equal(t, time.Date(2026, 10, 14, 15, 4, 37, 0, time.UTC), r.RetrievedAt)
	assert.Equal(t, 5, r.Metadata["quote_count"])

	require.Len(t, m.requests, 3, "5 adverts at 2 rows per page")
	for i, req := range m.requests {
		assert.Equal(t, "USDT", req.Asset)
		assert.Equal(t, "VES", req.Fiat)
		assert.Equal(t, i+1, req.Page)
	}
}

func TestFetcher_MaxPagesBoundsPagination(t *testing.T) {
	m := &marketplace{prices: map[string][]string{
		"SELL": {"36.0", "36.5", "37.0", "37.5", "38.0", "38.5"},
	}}
	f := newFetcher(t, m)

	source := &exchange.Source{Key: "p2p", Metadata: map[string]interface{}{
		"rows":                2,
		"max_pages":           2,
		"trade_types":         []interface{}{"sell"},
		"requests_per_second": 100,
	}}
	rates, err := f.Fetch(context.Background(), source, usdtVES)
	require.NoError(t, err)

	assert.Len(t, m.requests, 2)
	assert.Equal(t, "37.50000000", money.FormatRate(rates[0].Rate), "highest bid within the pages read")
}

func TestFetcher_BothSidesTakeTheMedian(t *testing.T) {
	m := &marketplace{prices: map[string][]string{
		"BUY":  {"36.0", "36.2"},
		"SELL": {"36.6", "37.0"},
	}}
	f := newFetcher(t, m)

	source := &exchange.Source{Key: "p2p", Metadata: map[string]interface{}{
		"trade_types":         []string{"BUY", "SELL"},
		"requests_per_second": 100,
	}}
	rates, err := f.Fetch(context.Background(), source, usdtVES)
	require.NoError(t, err)
	assert.Equal(t, "36.40000000", money.FormatRate(rates[0].Rate))
}

func TestFetcher_Failures(t *testing.T) {
	t.Run("upstream error is retryable", func(t *testing.T) {
		f := newFetcher(t, &marketplace{status: http.StatusTooManyRequests})
		_, err := f.Fetch(context.Background(), &exchange.Source{Key: "p2p"}, usdtVES)
		require.Error(t, err)
		assert.True(t, exchange.IsRetryable(err))
	})

	t.Run("no advertisements", func(t *testing.T) {
		f := newFetcher(t, &marketplace{prices: map[string][]string{}})
		_, err := f.Fetch(context.Background(), &exchange.Source{Key: "p2p"}, usdtVES)
		assert.ErrorIs(t, err, exchange.ErrNoQuotes)
		assert.True(t, exchange.IsRetryable(err))
	})

	t.Run("calculator not configured", func(t *testing.T) {
		f := newFetcher(t, &marketplace{})
		_, err := f.Fetch(context.Background(), &exchange.Source{Key: "unmapped"}, usdtVES)
		assert.ErrorIs(t, err, exchange.ErrCalculatorNotConfigured)
		assert.False(t, exchange.IsRetryable(err))
	})
}
