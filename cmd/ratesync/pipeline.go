package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/kislikjeka/moneyledger/internal/infra/gateway"
	infraRedis "github.com/kislikjeka/moneyledger/internal/infra/redis"
	"github.com/kislikjeka/moneyledger/internal/infra/storage"
	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/internal/platform/metrics"
	"github.com/kislikjeka/moneyledger/pkg/config"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

// pipeline is the exchange service plus what has to be closed after use
type pipeline struct {
	service *exchange.Service
	cfg     *config.ExchangeConfig
	log     *logger.Logger
	closers []func()
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// openPipeline wires storage, the optional Redis cache and the fetcher catalog
// the same way the API server does
func openPipeline(ctx context.Context, exchangeConfigPath string) (*pipeline, error) {
	cfg, err := config.LoadStorage()
	if err != nil {
		return nil, err
	}
	if exchangeConfigPath == "" {
		exchangeConfigPath = cfg.ExchangeConfigPath
	}
	exchangeCfg, err := config.LoadExchangeConfig(exchangeConfigPath)
	if err != nil {
		return nil, err
	}

	log := logger.NewWithOptions(os.Stderr, cfg.Logger()).Component("ratesync")
	p := &pipeline{cfg: exchangeCfg, log: log}

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, store.Close)

	var cache exchange.RateCache
	if cfg.RedisURL != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisURL, Password: cfg.RedisPassword})
		p.closers = append(p.closers, func() { client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cache = infraRedis.NewCache(client, log)
	}

	defs, resolverCfg := exchange.FromConfig(exchangeCfg)
	catalog := exchange.NewCatalog()
	resolver := exchange.NewResolver(catalog, resolverCfg)
	exchange.RegisterCalculators(catalog)
	gateway.RegisterFetchers(catalog, resolver, log)

	if err := exchange.Seed(ctx, store.Exchange, defs); err != nil {
		p.Close()
		return nil, err
	}

	p.service = exchange.NewService(store.Exchange, resolver, cache, metrics.New(), log)
	return p, nil
}
