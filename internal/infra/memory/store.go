// Package memory is an in-process implementation of every repository port.
// Write transactions are serialized and applied to a private copy of the
// state, which replaces the shared state on commit.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/internal/platform/budget"
	"github.com/kislikjeka/moneyledger/internal/platform/category"
	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
)

type contextKey string

const txContextKey contextKey = "memory_tx"

var (
	errTxInProgress = errors.New("transaction already in progress")
	errNoTx         = errors.New("no transaction in context")
)

type aggregateKey struct {
	ownerType string
	ownerID   uuid.UUID
	key       string
	scope     string
}

type rateKey struct {
	pairID      uuid.UUID
	sourceID    uuid.UUID
	effectiveAt int64
}

type supportKey struct {
	sourceID uuid.UUID
	pairID   uuid.UUID
}

type state struct {
	currencies   map[string]ledger.Currency
	accounts     map[uuid.UUID]ledger.Account
	transactions map[uuid.UUID]ledger.Transaction
	entries      map[uuid.UUID][]ledger.Entry
	categories   map[uuid.UUID]category.Category
	budgets      map[uuid.UUID]budget.Budget
	periods      map[uuid.UUID]budget.Period
	aggregates   map[aggregateKey]budget.CachedAggregate
	sources      map[uuid.UUID]exchange.Source
	pairs        map[uuid.UUID]exchange.Pair
	support      map[supportKey]bool
	rates        map[rateKey]exchange.Rate
}

func newState() *state {
	return &state{
		currencies:   make(map[string]ledger.Currency),
		accounts:     make(map[uuid.UUID]ledger.Account),
		transactions: make(map[uuid.UUID]ledger.Transaction),
		entries:      make(map[uuid.UUID][]ledger.Entry),
		categories:   make(map[uuid.UUID]category.Category),
		budgets:      make(map[uuid.UUID]budget.Budget),
		periods:      make(map[uuid.UUID]budget.Period),
		aggregates:   make(map[aggregateKey]budget.CachedAggregate),
		sources:      make(map[uuid.UUID]exchange.Source),
		pairs:        make(map[uuid.UUID]exchange.Pair),
		support:      make(map[supportKey]bool),
		rates:        make(map[rateKey]exchange.Rate),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		currencies:   cloneMap(s.currencies),
		accounts:     cloneMap(s.accounts),
		transactions: cloneMap(s.transactions),
		entries:      cloneMap(s.entries),
		categories:   cloneMap(s.categories),
		budgets:      cloneMap(s.budgets),
		periods:      cloneMap(s.periods),
		aggregates:   cloneMap(s.aggregates),
		sources:      cloneMap(s.sources),
		pairs:        cloneMap(s.pairs),
		support:      cloneMap(s.support),
		rates:        cloneMap(s.rates),
	}
}

type memTx struct {
	state *state
	done  bool
}

// Store is the in-memory repository
type Store struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{state: newState()}
}

// BeginTx starts a write transaction. Only one runs at a time.
func (s *Store) BeginTx(ctx context.Context) (context.Context, error) {
	if txFromContext(ctx) != nil {
		return ctx, errTxInProgress
	}

	s.txMu.Lock()
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return context.WithValue(ctx, txContextKey, &memTx{state: snapshot}), nil
}

// CommitTx publishes the transaction's state
func (s *Store) CommitTx(ctx context.Context) error {
	tx := txFromContext(ctx)
	if tx == nil || tx.done {
		return errNoTx
	}
	tx.done = true

	s.mu.Lock()
	s.state = tx.state
	s.mu.Unlock()
	s.txMu.Unlock()
	return nil
}

// RollbackTx discards the transaction's state
func (s *Store) RollbackTx(ctx context.Context) error {
	tx := txFromContext(ctx)
	if tx == nil {
		return errNoTx
	}
	if tx.done {
		return nil
	}
	tx.done = true
	s.txMu.Unlock()
	return nil
}

func txFromContext(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txContextKey).(*memTx)
	return tx
}

// read runs fn against the transaction state, or the shared state under a read lock
func (s *Store) read(ctx context.Context, fn func(st *state)) {
	if tx := txFromContext(ctx); tx != nil && !tx.done {
		fn(tx.state)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// write runs fn against the transaction state, or the shared state serialized
// with transactions
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if tx := txFromContext(ctx); tx != nil && !tx.done {
		return fn(tx.state)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	if err := fn(working); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}
