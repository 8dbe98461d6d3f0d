package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/ledger"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

// AggregationListener keeps cached budget aggregates in step with posted
// transactions. On every created or updated transaction it recomputes the
// current period of each budget owned by the transaction's user.
//
// Only the period containing "now" is refreshed; a transaction backdated into
// an earlier period leaves that period's cache untouched.
type AggregationListener struct {
	repo    Repository
	service *Service
	logger  *logger.Logger
}

// NewAggregationListener creates the listener
func NewAggregationListener(repo Repository, service *Service, log *logger.Logger) *AggregationListener {
	return &AggregationListener{
		repo:    repo,
		service: service,
		logger:  log.WithField("component", "budget_aggregation"),
	}
}

// Register subscribes the listener to transaction events
func (l *AggregationListener) Register(bus *ledger.Bus) {
	bus.Subscribe(ledger.EventTransactionCreated, "budget_aggregation", l.Handle)
	bus.Subscribe(ledger.EventTransactionUpdated, "budget_aggregation", l.Handle)
}

// Handle recomputes aggregates for the user of the event's transaction
func (l *AggregationListener) Handle(ctx context.Context, event ledger.Event) error {
	var userID uuid.UUID
	switch e := event.(type) {
	case ledger.TransactionCreated:
		userID = e.Transaction.UserID
	case ledger.TransactionUpdated:
		userID = e.Transaction.UserID
	default:
		return nil
	}

	return l.RecomputeUser(ctx, userID)
}

// RecomputeUser refreshes the current period of every budget of the user
func (l *AggregationListener) RecomputeUser(ctx context.Context, userID uuid.UUID) error {
	budgets, err := l.repo.ListBudgets(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list budgets: %w", err)
	}

	var errs []error
	for _, b := range budgets {
		summary, err := l.service.RecomputeCurrent(ctx, b)
		if err != nil {
			errs = append(errs, fmt.Errorf("budget %s: %w", b.ID, err))
			continue
		}
		if summary != nil {
			l.logger.Debug("budget aggregates recomputed",
				"budget_id", b.ID,
				"period_id", summary.Period.ID,
				"spent", summary.Spent.String(),
				"remaining", summary.Remaining.String())
		}
	}

	return errors.Join(errs...)
}
