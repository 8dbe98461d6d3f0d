package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/internal/platform/metrics"
)

func TestMetrics_LedgerAndExchangeCounters(t *testing.T) {
	m := metrics.New()

	m.TransactionCreated("transfer")
	m.TransactionCreated("transfer")
	m.TransactionCreated("")
	m.ValidationFailed("unbalanced")
	m.SyncFinished("bcv", "success", 1500*time.Millisecond)
	m.SyncFinished("bcv", "upstream_error", time.Second)
	m.RatesUpserted("bcv", 2)

	expected := `
# HELP moneyledger_ledger_transactions_created_total Committed ledger transactions by source
# TYPE moneyledger_ledger_transactions_created_total counter
moneyledger_ledger_transactions_created_total{source="manual"} 1
moneyledger_ledger_transactions_created_total{source="transfer"} 2
# HELP moneyledger_ledger_validation_failures_total Rejected ledger transactions by reason
# TYPE moneyledger_ledger_validation_failures_total counter
moneyledger_ledger_validation_failures_total{reason="unbalanced"} 1
# HELP moneyledger_exchange_syncs_total Exchange rate sync runs by source and status
# TYPE moneyledger_exchange_syncs_total counter
moneyledger_exchange_syncs_total{source="bcv",status="success"} 1
moneyledger_exchange_syncs_total{source="bcv",status="upstream_error"} 1
# HELP moneyledger_exchange_rates_upserted_total Exchange rates written by source
# TYPE moneyledger_exchange_rates_upserted_total counter
moneyledger_exchange_rates_upserted_total{source="bcv"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"moneyledger_ledger_transactions_created_total",
		"moneyledger_ledger_validation_failures_total",
		"moneyledger_exchange_syncs_total",
		"moneyledger_exchange_rates_upserted_total",
	))
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := metrics.New()

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/ok", "/ok", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `moneyledger_http_requests_total{method="GET",status="200"} 2`)
	assert.Contains(t, string(body), `moneyledger_http_requests_total{method="GET",status="404"} 1`)
}
