package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/pkg/logger"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

// ExchangeServiceInterface defines the exchange operations needed by ExchangeHandler
type ExchangeServiceInterface interface {
	Sync(ctx context.Context, sourceKey string, pairKeys []string) (*exchange.SyncResult, error)
	LatestRate(ctx context.Context, sourceKey, pairKey string) (*exchange.Rate, error)
	ListSources(ctx context.Context) ([]*exchange.Source, error)
	ListSupportedPairs(ctx context.Context, sourceKey string) ([]*exchange.Pair, error)
	ListRates(ctx context.Context, sourceKey string, pairKey string, from, to *time.Time, limit int) ([]*exchange.Rate, error)
}

// ExchangeHandler handles exchange rate HTTP requests
type ExchangeHandler struct {
	exchange    ExchangeServiceInterface
	syncTimeout time.Duration
	logger      *logger.Logger
}

// NewExchangeHandler creates a new exchange handler. syncTimeout bounds a
// manual sync; zero means one minute.
func NewExchangeHandler(svc ExchangeServiceInterface, syncTimeout time.Duration, log *logger.Logger) *ExchangeHandler {
	if syncTimeout <= 0 {
		syncTimeout = time.Minute
	}
	return &ExchangeHandler{
		exchange:    svc,
		syncTimeout: syncTimeout,
		logger:      log.WithField("component", "http.exchange"),
	}
}

// SyncRequest optionally narrows a manual sync to some pairs
type SyncRequest struct {
	Pairs []string `json:"pairs,omitempty"`
}

// SourceResponse represents an exchange source
type SourceResponse struct {
	Key   string   `json:"key"`
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Pairs []string `json:"pairs,omitempty"`
}

// RateResponse represents a stored rate
type RateResponse struct {
	Pair        string                 `json:"pair"`
	Rate        string                 `json:"rate"`
	EffectiveAt string                 `json:"effective_at"`
	RetrievedAt string                 `json:"retrieved_at"`
	IsEstimated bool                   `json:"is_estimated"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SyncResponse summarizes a sync run
type SyncResponse struct {
	Source     string         `json:"source"`
	Pairs      []string       `json:"pairs"`
	Rates      []RateResponse `json:"rates"`
	DurationMS int64          `json:"duration_ms"`
}

func toRateResponse(pairKey string, r *exchange.Rate) RateResponse {
	return RateResponse{
		Pair:        pairKey,
		Rate:        money.FormatRate(r.Rate),
		EffectiveAt: formatTime(r.EffectiveAt),
		RetrievedAt: formatTime(r.RetrievedAt),
		IsEstimated: r.IsEstimated,
		Metadata:    r.Metadata,
	}
}

// ListSources handles GET /exchange/sources
func (h *ExchangeHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.exchange.ListSources(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]SourceResponse, 0, len(sources))
	for _, s := range sources {
		resp := SourceResponse{Key: s.Key, Name: s.Name, Type: s.Type}
		pairs, err := h.exchange.ListSupportedPairs(r.Context(), s.Key)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		for _, p := range pairs {
			resp.Pairs = append(resp.Pairs, p.Key())
		}
		out = append(out, resp)
	}
	respondJSON(w, out, http.StatusOK)
}

// pairParam reads "{base}/{quote}" path segments, e.g. /rates/USD/VES
func pairParam(r *http.Request) string {
	return exchange.PairKey(chi.URLParam(r, "base"), chi.URLParam(r, "quote"))
}

// GetLatestRate handles GET /exchange/sources/{key}/rates/{base}/{quote}/latest
func (h *ExchangeHandler) GetLatestRate(w http.ResponseWriter, r *http.Request) {
	pairKey := pairParam(r)
	rate, err := h.exchange.LatestRate(r.Context(), chi.URLParam(r, "key"), pairKey)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toRateResponse(pairKey, rate), http.StatusOK)
}

// ListRates handles GET /exchange/sources/{key}/rates/{base}/{quote}
func (h *ExchangeHandler) ListRates(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", 100, 1000)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pairKey := pairParam(r)
	rates, err := h.exchange.ListRates(r.Context(), chi.URLParam(r, "key"), pairKey, from, to, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]RateResponse, 0, len(rates))
	for _, rate := range rates {
		out = append(out, toRateResponse(pairKey, rate))
	}
	respondJSON(w, out, http.StatusOK)
}

// Sync handles POST /exchange/sources/{key}/sync. The run is bound to the
// request context and the handler's timeout.
func (h *ExchangeHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	for i, p := range req.Pairs {
		req.Pairs[i] = strings.ToUpper(strings.TrimSpace(p))
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.syncTimeout)
	defer cancel()

	result, err := h.exchange.Sync(ctx, chi.URLParam(r, "key"), req.Pairs)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pairs, err := h.exchange.ListSupportedPairs(r.Context(), result.Source)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	keys := make(map[uuid.UUID]string, len(pairs))
	for _, p := range pairs {
		keys[p.ID] = p.Key()
	}

	resp := SyncResponse{
		Source:     result.Source,
		Pairs:      result.Pairs,
		Rates:      make([]RateResponse, 0, len(result.Rates)),
		DurationMS: result.Duration.Milliseconds(),
	}
	for _, rate := range result.Rates {
		resp.Rates = append(resp.Rates, toRateResponse(keys[rate.PairID], rate))
	}
	respondJSON(w, resp, http.StatusOK)
}
