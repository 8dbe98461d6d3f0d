package bcv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

const (
	defaultBaseURL = "https://www.bcv.org.ve/"
	requestTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20

	// Quote currency of every published rate
	quoteCurrency = "VES"
)

// Currency blocks on the page are keyed by element id
var currencyBlocks = map[string]string{
	"USD": "dolar",
	"EUR": "euro",
	"CNY": "yuan",
	"TRY": "lira",
	"RUB": "rublo",
}

// Fetcher scrapes the official fixed rates published by the central bank
type Fetcher struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
	now        func() time.Time
}

// NewFetcher creates a new official-rate fetcher
func NewFetcher(log *logger.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		baseURL: defaultBaseURL,
		logger:  log.WithField("component", "bcv"),
		now:     time.Now,
	}
}

// SetBaseURL overrides the default page URL (useful for testing)
func (f *Fetcher) SetBaseURL(url string) {
	f.baseURL = url
}

// Fetch downloads the page once and extracts every requested pair
func (f *Fetcher) Fetch(ctx context.Context, source *exchange.Source, pairs []*exchange.Pair) ([]exchange.FetchedRate, error) {
	ctx, cancel := context.WithTimeout(ctx, source.DurationOption("timeout", requestTimeout))
	defer cancel()

	start := time.Now()
	body, err := f.download(ctx, source.StringOption("url", f.baseURL))
	if err != nil {
		return nil, exchange.NewFetchError(source.Key, err)
	}

	retrievedAt := f.now().UTC()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, exchange.NewFetchError(source.Key, fmt.Errorf("failed to parse page: %w", err))
	}
	effectiveAt, err := publicationDate(doc)
	if err != nil {
		return nil, exchange.NewFetchError(source.Key, err)
	}

	rates := make([]exchange.FetchedRate, 0, len(pairs))
	for _, pair := range pairs {
		if pair.Quote != quoteCurrency {
			f.logger.Warn("pair not published", "pair", pair.Key())
			continue
		}
		id, ok := currencyBlocks[pair.Base]
		if !ok {
			f.logger.Warn("pair not published", "pair", pair.Key())
			continue
		}

		rate, err := extractRate(doc, id)
		if err != nil {
			return nil, exchange.NewFetchError(source.Key, fmt.Errorf("%s: %w", pair.Key(), err))
		}

		rates = append(rates, exchange.FetchedRate{
			Base:        pair.Base,
			Quote:       pair.Quote,
			Rate:        rate,
			EffectiveAt: effectiveAt,
			RetrievedAt: retrievedAt,
			Metadata: map[string]interface{}{
				"raw_rate": rate.String(),
			},
		})
	}

	f.logger.Info("official rates fetched", "count", len(rates), "effective_at", effectiveAt, "duration_ms", time.Since(start).Milliseconds())
	return rates, nil
}

func (f *Fetcher) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "moneyledger-ratesync/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.Error("page error", "status_code", resp.StatusCode)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return string(body), nil
}

// extractRate reads the value of one currency block. Only the block's own
// <strong> counts; a block without one is an error. The page uses a comma
// decimal separator and may use dots for thousands.
func extractRate(doc *goquery.Document, id string) (decimal.Decimal, error) {
	block := doc.Find("#" + id).First()
	if block.Length() == 0 {
		return decimal.Zero, fmt.Errorf("rate block %q not found", id)
	}
	value := block.Find("strong").First()
	if value.Length() == 0 {
		return decimal.Zero, fmt.Errorf("rate block %q has no value", id)
	}
	return parseLocalized(value.Text())
}

func parseLocalized(s string) (decimal.Decimal, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	normalized = strings.Replace(normalized, ",", ".", 1)
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed rate %q", s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive rate %q", s)
	}
	return d, nil
}

// publicationDate is the "Fecha Valor" of the published rates, normalized to UTC midnight
func publicationDate(doc *goquery.Document) (time.Time, error) {
	content, ok := doc.Find(".date-display-single").First().Attr("content")
	if !ok {
		return time.Time{}, fmt.Errorf("publication date not found")
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(content))
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed publication date %q", content)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

var _ exchange.Fetcher = (*Fetcher)(nil)
