package exchange

import (
	"fmt"
	"sync"
)

// Catalog is the static table of named fetcher and calculator implementations.
// Components are registered once at startup.
type Catalog struct {
	mu         sync.RWMutex
	components map[string]interface{}
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{components: make(map[string]interface{})}
}

// Register adds a named component; a later registration replaces an earlier one
func (c *Catalog) Register(name string, component interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = component
}

func (c *Catalog) lookup(name string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	component, ok := c.components[name]
	return component, ok
}

// ResolverConfig maps sources and pairs to catalog names
type ResolverConfig struct {
	// Fetchers maps a source key to a fetcher name
	Fetchers map[string]string
	// Calculators maps a source key to pair key to calculator name.
	// The pair key "*" applies to every pair of the source.
	Calculators map[string]map[string]string
	// DefaultCalculator is used when nothing more specific is configured
	DefaultCalculator string
}

// Resolver picks the fetcher for a source and the calculator for a pair
type Resolver struct {
	catalog *Catalog
	cfg     ResolverConfig
}

// NewResolver creates a resolver over a populated catalog
func NewResolver(catalog *Catalog, cfg ResolverConfig) *Resolver {
	return &Resolver{catalog: catalog, cfg: cfg}
}

// Fetcher returns the fetcher configured for the source
func (r *Resolver) Fetcher(source *Source) (Fetcher, error) {
	name, ok := r.cfg.Fetchers[source.Key]
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %s", ErrFetcherNotConfigured, source.Key)
	}

	component, ok := r.catalog.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrFetcherNotConfigured, source.Key, name)
	}

	fetcher, ok := component.(Fetcher)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%T)", ErrInvalidFetcher, name, component)
	}
	return fetcher, nil
}

// Calculator returns the calculator for (source, pair). Lookup order: the
// source's metadata "calculators" map, the configured pair entry, the
// configured "*" entry, then the default calculator.
func (r *Resolver) Calculator(source *Source, pair *Pair) (RateCalculator, error) {
	name := r.calculatorName(source, pair)
	if name == "" {
		return nil, fmt.Errorf("%w: %s %s", ErrCalculatorNotConfigured, source.Key, pair.Key())
	}

	component, ok := r.catalog.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s -> %s", ErrCalculatorNotConfigured, source.Key, pair.Key(), name)
	}

	calculator, ok := component.(RateCalculator)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%T)", ErrInvalidCalculator, name, component)
	}
	return calculator, nil
}

func (r *Resolver) calculatorName(source *Source, pair *Pair) string {
	if overrides, ok := source.Metadata["calculators"].(map[string]interface{}); ok {
		if name, ok := overrides[pair.Key()].(string); ok && name != "" {
			return name
		}
	}

	if byPair, ok := r.cfg.Calculators[source.Key]; ok {
		if name := byPair[pair.Key()]; name != "" {
			return name
		}
		if name := byPair["*"]; name != "" {
			return name
		}
	}

	return r.cfg.DefaultCalculator
}
