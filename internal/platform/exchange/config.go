package exchange

import (
	"github.com/kislikjeka/moneyledger/pkg/config"
)

// FromConfig turns the YAML source list into seed definitions and resolver mappings
func FromConfig(cfg *config.ExchangeConfig) ([]SourceDefinition, ResolverConfig) {
	defs := make([]SourceDefinition, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		metadata := make(map[string]interface{}, len(s.Options))
		for k, v := range s.Options {
			metadata[k] = v
		}
		defs = append(defs, SourceDefinition{
			Key:      s.Key,
			Name:     s.Name,
			Type:     s.Type,
			Pairs:    s.Pairs,
			Metadata: metadata,
		})
	}

	return defs, ResolverConfig{
		Fetchers:          cfg.Fetchers(),
		Calculators:       cfg.CalculatorNames(),
		DefaultCalculator: cfg.DefaultCalculator,
	}
}
