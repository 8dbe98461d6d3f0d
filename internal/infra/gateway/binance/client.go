package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

const (
	defaultBaseURL   = "https://p2p.binance.com"
	searchPath       = "/bapi/c2c/v2/friendly/c2c/adv/search"
	requestTimeout   = 30 * time.Second
	defaultRows      = 20
	defaultMaxPages  = 1
	defaultRPS       = 2
	successCode      = "000000"
	defaultTradeType = "BUY"
)

// Fetcher derives estimated rates from P2P marketplace advertisements
type Fetcher struct {
	httpClient  *http.Client
	baseURL     string
	calculators exchange.CalculatorResolver
	logger      *logger.Logger
	now         func() time.Time
}

// NewFetcher creates a new P2P marketplace fetcher
func NewFetcher(calculators exchange.CalculatorResolver, log *logger.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		baseURL:     defaultBaseURL,
		calculators: calculators,
		logger:      log.WithField("component", "binance_p2p"),
		now:         time.Now,
	}
}

// SetBaseURL overrides the default base URL (useful for testing)
func (f *Fetcher) SetBaseURL(url string) {
	f.baseURL = url
}

// SetClock overrides the clock (useful for testing)
func (f *Fetcher) SetClock(now func() time.Time) {
	f.now = now
}

// Fetch collects quotes per pair and reduces them with the configured calculator.
// Requests are throttled to the source's requests_per_second option.
func (f *Fetcher) Fetch(ctx context.Context, source *exchange.Source, pairs []*exchange.Pair) ([]exchange.FetchedRate, error) {
	opts := optionsFor(source)
	limiter := rate.NewLimiter(rate.Limit(opts.rps), 1)

	retrievedAt := f.now().UTC()
	effectiveAt := retrievedAt.Truncate(time.Minute)

	rates := make([]exchange.FetchedRate, 0, len(pairs))
	for _, pair := range pairs {
		calculator, err := f.calculators.Calculator(source, pair)
		if err != nil {
			return nil, err
		}

		var quotes []exchange.Quote
		for _, tradeType := range opts.tradeTypes {
			q, err := f.collect(ctx, limiter, source.Key, pair, tradeType, opts)
			if err != nil {
				return nil, exchange.NewFetchError(source.Key, err)
			}
			quotes = append(quotes, q...)
		}

		calc, err := calculator.Calculate(ctx, source, pair, quotes)
		if err != nil {
			return nil, exchange.NewFetchError(source.Key, fmt.Errorf("%s: %w", pair.Key(), err))
		}

		metadata := calc.Metadata
		if metadata == nil {
			metadata = make(map[string]interface{})
		}
		metadata["trade_types"] = opts.tradeTypes

		rates = append(rates, exchange.FetchedRate{
			Base:        pair.Base,
			Quote:       pair.Quote,
			Rate:        calc.Rate,
			EffectiveAt: effectiveAt,
			RetrievedAt: retrievedAt,
			IsEstimated: true,
			Metadata:    metadata,
		})
	}

	return rates, nil
}

// collect pages through the advertisements of one pair and trade side
func (f *Fetcher) collect(ctx context.Context, limiter *rate.Limiter, sourceKey string, pair *exchange.Pair, tradeType string, opts options) ([]exchange.Quote, error) {
	var quotes []exchange.Quote
	for page := 1; page <= opts.maxPages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := f.search(ctx, searchRequest{
			Asset:     pair.Base,
			Fiat:      pair.Quote,
			TradeType: tradeType,
			Page:      page,
			Rows:      opts.rows,
			PayTypes:  []string{},
		})
		if err != nil {
			return nil, fmt.Errorf("%s %s page %d: %w", pair.Key(), tradeType, page, err)
		}

		for _, ad := range resp.Data {
			q, err := toQuote(ad, tradeType)
			if err != nil {
				f.logger.Warn("skipping malformed advertisement", "source", sourceKey, "pair", pair.Key(), "error", err)
				continue
			}
			quotes = append(quotes, q)
		}

		if len(resp.Data) < opts.rows || page*opts.rows >= resp.Total {
			break
		}
	}

	f.logger.Debug("quotes collected", "pair", pair.Key(), "trade_type", tradeType, "count", len(quotes))
	return quotes, nil
}

func (f *Fetcher) search(ctx context.Context, body searchRequest) (*searchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+searchPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.Error("API error", "status_code", resp.StatusCode)
		return nil, fmt.Errorf("P2P API error: status %d, body: %s", resp.StatusCode, string(raw))
	}

	var out searchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode P2P response: %w", err)
	}
	if out.Code != "" && out.Code != successCode {
		return nil, fmt.Errorf("P2P API error: code %s: %s", out.Code, out.Message)
	}

	f.logger.Debug("API response", "status_code", resp.StatusCode, "rows", len(out.Data), "duration_ms", time.Since(start).Milliseconds())
	return &out, nil
}

func toQuote(ad advertisement, requested string) (exchange.Quote, error) {
	price, err := decimal.NewFromString(ad.Adv.Price)
	if err != nil {
		return exchange.Quote{}, fmt.Errorf("price %q: %w", ad.Adv.Price, err)
	}

	tradeType := ad.Adv.TradeType
	if tradeType == "" {
		tradeType = requested
	}

	return exchange.Quote{
		Price:     price,
		TradeType: exchange.TradeType(strings.ToUpper(tradeType)),
		Available: optionalDecimal(ad.Adv.SurplusAmount),
		MinAmount: optionalDecimal(ad.Adv.MinSingleTransAmount),
		MaxAmount: optionalDecimal(ad.Adv.MaxSingleTransAmount),
		Merchant:  ad.Advertiser.NickName,
	}, nil
}

func optionalDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type options struct {
	tradeTypes []string
	rows       int
	maxPages   int
	rps        int
}

func optionsFor(source *exchange.Source) options {
	opts := options{
		rows:     source.IntOption("rows", defaultRows),
		maxPages: source.IntOption("max_pages", defaultMaxPages),
		rps:      source.IntOption("requests_per_second", defaultRPS),
	}
	for _, t := range source.StringsOption("trade_types", []string{defaultTradeType}) {
		opts.tradeTypes = append(opts.tradeTypes, strings.ToUpper(t))
	}
	if opts.rows <= 0 {
		opts.rows = defaultRows
	}
	if opts.maxPages <= 0 {
		opts.maxPages = defaultMaxPages
	}
	if opts.rps <= 0 {
		opts.rps = defaultRPS
	}
	return opts
}

var _ exchange.Fetcher = (*Fetcher)(nil)
