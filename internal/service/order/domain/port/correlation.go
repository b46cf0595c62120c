package port

import (
	"context"
	"time"

	"ordersaga/internal/service/order/domain"
)

// CorrelationStore holds the per-order join state. All mutation goes through
// RecordOutcome, AckPayment and Sweep, each atomic per order id.
type CorrelationStore interface {
	// RecordOutcome records one dimension's outcome and reports the join decision.
	// snapshot is only consulted for customer approvals.
	RecordOutcome(ctx context.Context, orderID string, dim domain.Dimension, outcome domain.ValidationOutcome, snapshot *domain.OrderSnapshot) (domain.JoinResult, error)

	// AckPayment marks the payment of a joined saga as published. Until then the
	// record is never evicted and the payment is handed out again through
	// RetryPayment decisions and sweep reports.
	AckPayment(ctx context.Context, orderID string) error

	// Sweep expires records older than the max age and evicts terminal records
	// past retention.
	Sweep(ctx context.Context, now time.Time) (domain.SweepReport, error)

	// Get returns a copy of the record. An evicted order reports only its terminal
	// state until its tombstone expires; unknown orders return false.
	Get(ctx context.Context, orderID string) (domain.SagaRecord, bool, error)
}

// Locker grants a short-lived exclusive lease, used so only one coordinator
// replica sweeps a shared store.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}
