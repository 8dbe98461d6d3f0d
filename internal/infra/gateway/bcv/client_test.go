package bcv_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/internal/infra/gateway/bcv"
	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

const page = `<html><body>
<div id="euro" class="col-sm-12"><div class="field-content"><span> EUR </span>
  <div class="centrado"><strong> 39,87654321 </strong></div></div></div>
<div id="dolar" class="col-sm-12"><div class="field-content"><span> USD </span>
  <div class="centrado"><strong> 36,51230000 </strong></div></div></div>
<div class="pull-right dinpro center">Fecha Valor:
  <span class="date-display-single" property="dc:date" content="2026-10-14T00:00:00-04:00">Miércoles, 14 Octubre 2026</span>
</div>
</body></html>`

func testLogger() *logger.Logger {
	return logger.New("development", io.Discard)
}

func pairs(keys ...string) []*exchange.Pair {
	out := make([]*exchange.Pair, len(keys))
	for i, k := range keys {
		base, quote, _ := exchange.ParsePairKey(k)
		out[i] = &exchange.Pair{Base: base, Quote: quote}
	}
	return out
}

func newFetcher(t *testing.T, handler http.HandlerFunc) *bcv.Fetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	f := bcv.NewFetcher(testLogger())
	f.SetBaseURL(server.URL)
	return f
}

func TestFetcher_ParsesOfficialRates(t *testing.T) {
	f := newFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(page))
	})

	rates, err := f.Fetch(context.Background(), &exchange.Source{Key: "bcv"}, pairs("USD/VES", "EUR/VES"))
	require.NoError(t, err)
	require.Len(t, rates, 2)

	assert.Equal(t, "USD/VES", rates[0].PairKey())
	assert.Equal(t, "36.51230000", money.FormatRate(rates[0].Rate))
	assert.Equal(t, "EUR/VES", rates[1].PairKey())
	assert.Equal(t, "39.87654321", money.FormatRate(rates[1].Rate))

	for _, r := range rates {
		assert.False(t, r.IsEstimated)
		assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), r.EffectiveAt, "effective at the publication date")
		assert.False(t, r.RetrievedAt.IsZero())
	}
}

func TestFetcher_SkipsUnpublishedPairs(t *testing.T) {
	f := newFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	})

	rates, err := f.Fetch(context.Background(), &exchange.Source{Key: "bcv"}, pairs("USD/VES", "USD/COP", "GBP/VES"))
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "USD/VES", rates[0].PairKey())
}

func TestFetcher_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		request []*exchange.Pair
	}{
		{"server error", http.StatusServiceUnavailable, "maintenance", pairs("USD/VES")},
		{"no publication date", http.StatusOK, `<div id="dolar"><strong>36,5</strong></div>`, pairs("USD/VES")},
		{"missing rate block", http.StatusOK, `<span class="date-display-single" content="2026-10-14T00:00:00-04:00"></span>`, pairs("USD/VES")},
		{"non-positive rate", http.StatusOK, `<div id="dolar"><strong>0,00</strong></div><span class="date-display-single" content="2026-10-14T00:00:00-04:00"></span>`, pairs("USD/VES")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := f.Fetch(context.Background(), &exchange.Source{Key: "bcv"}, tt.request)
			require.Error(t, err)
			assert.True(t, exchange.IsRetryable(err))
		})
	}
}

func TestFetcher_HonoursTimeoutOption(t *testing.T) {
	release := make(chan struct{})
	f := newFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	source := &exchange.Source{Key: "bcv", Metadata: map[string]interface{}{"timeout": "50ms"}}
	start := time.Now()
	_, err := f.Fetch(context.Background(), source, pairs("USD/VES"))
	require.Error(t, err)
	assert.True(t, exchange.IsRetryable(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetcher_BlockWithoutValueDoesNotBorrowNextBlock(t *testing.T) {
	const body = `<html><body>
<div id="dolar" class="col-sm-12"><div class="field-content"><span> USD </span>
  <div class="centrado"><span> -- </span></div></div></div>
<div id="euro" class="col-sm-12"><div class="field-content"><span> EUR </span>
  <div class="centrado"><strong> 39,87654321 </strong></div></div></div>
<span class="date-display-single" content="2026-10-14T00:00:00-04:00"></span>
</body></html>`

	f := newFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	rates, err := f.Fetch(context.Background(), &exchange.Source{Key: "bcv"}, pairs("USD/VES"))
	require.Error(t, err)
	assert.Nil(t, rates)
	assert.True(t, exchange.IsRetryable(err))
	assert.ErrorContains(t, err, `"dolar" has no value`)

	rates, err = f.Fetch(context.Background(), &exchange.Source{Key: "bcv"}, pairs("EUR/VES"))
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "39.87654321", money.FormatRate(rates[0].Rate))
}
