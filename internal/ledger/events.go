package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kislikjeka/moneyledger/pkg/logger"
)

// EventName identifies a domain event kind
type EventName string

const (
	EventAccountCreated     EventName = "account.created"
	EventAccountUpdated     EventName = "account.updated"
	EventTransactionCreated EventName = "transaction.created"
	EventTransactionUpdated EventName = "transaction.updated"
)

// Event is a fact published after a committed ledger write
type Event interface {
	Name() EventName
}

// AccountCreated is published after a new account is committed
type AccountCreated struct {
	Account *Account
}

func (AccountCreated) Name() EventName { return EventAccountCreated }

// AccountUpdated is published after an account change is committed.
// PreviousCurrencyCode is the currency before the update.
type AccountUpdated struct {
	Account              *Account
	PreviousCurrencyCode string
}

func (AccountUpdated) Name() EventName { return EventAccountUpdated }

// CurrencyChanged reports whether the update moved the account to a new currency
func (e AccountUpdated) CurrencyChanged() bool {
	return e.PreviousCurrencyCode != "" && e.PreviousCurrencyCode != e.Account.CurrencyCode
}

// TransactionCreated is published after a transaction and its entries are committed
type TransactionCreated struct {
	Transaction *Transaction
}

func (TransactionCreated) Name() EventName { return EventTransactionCreated }

// TransactionUpdated is published after transaction metadata changes are committed
type TransactionUpdated struct {
	Transaction *Transaction
}

func (TransactionUpdated) Name() EventName { return EventTransactionUpdated }

// Listener reacts to a published event
type Listener func(ctx context.Context, event Event) error

// Bus is a synchronous event bus. Listeners are registered at startup and
// run in registration order on the publishing goroutine.
type Bus struct {
	mu        sync.RWMutex
	listeners map[EventName][]namedListener
	logger    *logger.Logger
}

type namedListener struct {
	name string
	fn   Listener
}

// NewBus creates an empty event bus
func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		listeners: make(map[EventName][]namedListener),
		logger:    log.WithField("component", "event_bus"),
	}
}

// Subscribe registers a listener for an event kind
func (b *Bus) Subscribe(event EventName, name string, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[event] = append(b.listeners[event], namedListener{name: name, fn: fn})
}

// Publish delivers the event to every listener. A failing listener does not
// stop delivery to the remaining ones; all failures are joined.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	listeners := b.listeners[event.Name()]
	b.mu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if err := l.fn(ctx, event); err != nil {
			b.logger.WithContext(ctx).Error("event listener failed",
				"event", event.Name(),
				"listener", l.name,
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
		}
	}

	return errors.Join(errs...)
}

// nopPublisher is used when a service is built without a bus
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
