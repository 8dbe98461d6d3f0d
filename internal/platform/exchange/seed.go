package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceDefinition is the configured shape of a source and the pairs it publishes
type SourceDefinition struct {
	Key      string
	Name     string
	Type     string
	Pairs    []string
	Metadata map[string]interface{}
}

// Seed makes sure every defined source, pair and source-pair link exists.
// Existing rows are left as they are, so running it on every start is safe.
func Seed(ctx context.Context, repo Repository, defs []SourceDefinition) error {
	txCtx, err := repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = repo.RollbackTx(txCtx)
		}
	}()

	for _, def := range defs {
		source, err := ensureSource(txCtx, repo, def)
		if err != nil {
			return err
		}
		for _, key := range def.Pairs {
			pair, err := ensurePair(txCtx, repo, key)
			if err != nil {
				return fmt.Errorf("source %s: %w", def.Key, err)
			}
			if err := repo.AttachPair(txCtx, source.ID, pair.ID); err != nil {
				return fmt.Errorf("failed to attach %s to %s: %w", pair.Key(), def.Key, err)
			}
		}
	}

	if err := repo.CommitTx(txCtx); err != nil {
		return fmt.Errorf("failed to commit exchange seed: %w", err)
	}
	committed = true
	return nil
}

func ensureSource(ctx context.Context, repo Repository, def SourceDefinition) (*Source, error) {
	existing, err := repo.GetSourceByKey(ctx, def.Key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrSourceNotFound) {
		return nil, fmt.Errorf("failed to load source %s: %w", def.Key, err)
	}

	source := &Source{
		ID:        uuid.New(),
		Key:       def.Key,
		Name:      def.Name,
		Type:      def.Type,
		Metadata:  def.Metadata,
		CreatedAt: time.Now().UTC(),
	}
	if source.Name == "" {
		source.Name = def.Key
	}
	if err := repo.CreateSource(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to create source %s: %w", def.Key, err)
	}
	return source, nil
}

func ensurePair(ctx context.Context, repo Repository, key string) (*Pair, error) {
	base, quote, err := ParsePairKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, key)
	}

	existing, err := repo.FindPair(ctx, base, quote)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrPairNotFound) {
		return nil, fmt.Errorf("failed to load pair %s: %w", key, err)
	}

	pair := &Pair{ID: uuid.New(), Base: base, Quote: quote}
	if err := repo.CreatePair(ctx, pair); err != nil {
		return nil, fmt.Errorf("failed to create pair %s: %w", key, err)
	}
	return pair, nil
}
