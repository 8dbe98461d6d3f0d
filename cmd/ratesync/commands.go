package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/internal/platform/scheduler"
	"github.com/kislikjeka/moneyledger/pkg/money"
)

type rateOutput struct {
	Source      string `json:"source"`
	Pair        string `json:"pair"`
	Rate        string `json:"rate"`
	EffectiveAt string `json:"effective_at"`
	IsEstimated bool   `json:"is_estimated"`
}

func printJSON(v interface{}) subcommands.ExitStatus {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func splitPairs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type syncCmd struct {
	config  string
	source  string
	pairs   string
	timeout time.Duration
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "fetch and store the current rates of one or all sources" }
func (*syncCmd) Usage() string {
	return `ratesync sync [-source <key>] [-pairs USD/VES,EUR/VES] [-timeout 2m]

  Runs one ingestion for the given source, or for every configured source
  when -source is empty. Prints the stored rates as JSON.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "Exchange config path (defaults to EXCHANGE_CONFIG_PATH).")
	f.StringVar(&c.source, "source", "", "Source key to sync; all sources when empty.")
	f.StringVar(&c.pairs, "pairs", "", "Comma separated pair keys; every supported pair when empty.")
	f.DurationVar(&c.timeout, "timeout", 0, "Per-source timeout; defaults to the source's run_timeout.")
}

func (c *syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	p, err := openPipeline(ctx, c.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer p.Close()

	jobs, err := scheduler.JobsFromConfig(p.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	timeouts := make(map[string]time.Duration, len(jobs))
	for _, j := range jobs {
		timeouts[j.SourceKey] = j.RunTimeout
	}

	keys := []string{c.source}
	if c.source == "" {
		keys = keys[:0]
		for _, s := range p.cfg.Sources {
			keys = append(keys, s.Key)
		}
	}

	status := subcommands.ExitSuccess
	var out []rateOutput
	for _, key := range keys {
		timeout := c.timeout
		if timeout <= 0 {
			timeout = timeouts[key]
		}
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}

		runCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := p.service.Sync(runCtx, key, splitPairs(c.pairs))
		cancel()
		if err != nil {
			p.log.WithError(err).Error("sync failed", "source", key)
			status = subcommands.ExitFailure
			continue
		}

		pairs, err := p.service.ListSupportedPairs(ctx, key)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		names := make(map[string]string, len(pairs))
		for _, pair := range pairs {
			names[pair.ID.String()] = pair.Key()
		}
		for _, r := range result.Rates {
			out = append(out, toOutput(key, names[r.PairID.String()], r))
		}
	}

	if s := printJSON(out); s != subcommands.ExitSuccess {
		return s
	}
	return status
}

func toOutput(source, pair string, r *exchange.Rate) rateOutput {
	return rateOutput{
		Source:      source,
		Pair:        pair,
		Rate:        money.FormatRate(r.Rate),
		EffectiveAt: r.EffectiveAt.UTC().Format(time.RFC3339),
		IsEstimated: r.IsEstimated,
	}
}

type sourcesCmd struct {
	config string
}

func (*sourcesCmd) Name() string     { return "sources" }
func (*sourcesCmd) Synopsis() string { return "list the configured sources and their pairs" }
func (*sourcesCmd) Usage() string {
	return `ratesync sources

  Seeds the configured sources if needed and lists them with their pairs.
`
}

func (c *sourcesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "Exchange config path (defaults to EXCHANGE_CONFIG_PATH).")
}

func (c *sourcesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	p, err := openPipeline(ctx, c.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer p.Close()

	sources, err := p.service.ListSources(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	type sourceOutput struct {
		Key   string   `json:"key"`
		Name  string   `json:"name"`
		Type  string   `json:"type"`
		Pairs []string `json:"pairs"`
	}
	out := make([]sourceOutput, 0, len(sources))
	for _, s := range sources {
		pairs, err := p.service.ListSupportedPairs(ctx, s.Key)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		o := sourceOutput{Key: s.Key, Name: s.Name, Type: s.Type, Pairs: []string{}}
		for _, pair := range pairs {
			o.Pairs = append(o.Pairs, pair.Key())
		}
		out = append(out, o)
	}
	return printJSON(out)
}

type latestCmd struct {
	config string
	source string
	pair   string
}

func (*latestCmd) Name() string     { return "latest" }
func (*latestCmd) Synopsis() string { return "print the most recent stored rate of a pair" }
func (*latestCmd) Usage() string {
	return `ratesync latest -source <key> -pair <BASE/QUOTE>
`
}

func (c *latestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "Exchange config path (defaults to EXCHANGE_CONFIG_PATH).")
	f.StringVar(&c.source, "source", "", "Source key.")
	f.StringVar(&c.pair, "pair", "", "Pair key, e.g. USD/VES.")
}

func (c *latestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.source == "" || c.pair == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}

	p, err := openPipeline(ctx, c.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer p.Close()

	pair := strings.ToUpper(strings.TrimSpace(c.pair))
	r, err := p.service.LatestRate(ctx, c.source, pair)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return printJSON(toOutput(c.source, pair, r))
}
