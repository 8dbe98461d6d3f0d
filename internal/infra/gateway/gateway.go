// Package gateway registers the upstream rate fetchers in an exchange catalog.
package gateway

import (
	"github.com/kislikjeka/moneyledger/internal/infra/gateway/bcv"
	"github.com/kislikjeka/moneyledger/internal/infra/gateway/binance"
	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

// Fetcher names referenced by the exchange configuration
const (
	FetcherBCV        = "bcv"
	FetcherBinanceP2P = "binance_p2p"
)

// RegisterFetchers adds every built-in fetcher to the catalog. The P2P
// fetcher resolves its calculators through calculators at fetch time.
func RegisterFetchers(c *exchange.Catalog, calculators exchange.CalculatorResolver, log *logger.Logger) {
	c.Register(FetcherBCV, bcv.NewFetcher(log))
	c.Register(FetcherBinanceP2P, binance.NewFetcher(calculators, log))
}
