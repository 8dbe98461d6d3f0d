package metrics

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
)

const namespace = "moneyledger"

// Metrics owns every collector of the process on its own registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	transactionsCreated *prometheus.CounterVec
	validationFailures  *prometheus.CounterVec

	syncRuns      *prometheus.CounterVec
	syncDuration  *prometheus.HistogramVec
	ratesUpserted *prometheus.CounterVec
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		transactionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_created_total",
			Help:      "Committed ledger transactions by source",
		}, []string{"source"}),
		validationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "validation_failures_total",
			Help:      "Rejected ledger transactions by reason",
		}, []string{"reason"}),
		syncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "syncs_total",
			Help:      "Exchange rate sync runs by source and status",
		}, []string{"source", "status"}),
		syncDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "sync_duration_seconds",
			Help:      "Duration of exchange rate sync runs",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"source"}),
		ratesUpserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "rates_upserted_total",
			Help:      "Exchange rates written by source",
		}, []string{"source"}),
	}
}

// Registry exposes the registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests and their duration
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, strconv.Itoa(status)}
		m.httpRequests.WithLabelValues(labels...).Inc()
		m.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) TransactionCreated(source string) {
	if source == "" {
		source = "manual"
	}
	m.transactionsCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) ValidationFailed(reason string) {
	m.validationFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) SyncFinished(source, status string, duration time.Duration) {
	m.syncRuns.WithLabelValues(source, status).Inc()
	m.syncDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *Metrics) RatesUpserted(source string, count int) {
	m.ratesUpserted.WithLabelValues(source).Add(float64(count))
}

var (
	_ ledger.Metrics   = (*Metrics)(nil)
	_ exchange.Metrics = (*Metrics)(nil)
)
