package port

import (
	"context"

	"ordersaga/internal/service/order/domain"
)

// Verdict is a validator policy decision.
type Verdict bool

const (
	Approve Verdict = true
	Deny    Verdict = false
)

func (v Verdict) Outcome() domain.ValidationOutcome {
	if v {
		return domain.OutcomeApproved
	}
	return domain.OutcomeRejected
}

// ValidationPolicy decides one dimension for a placed order. Evaluate must be
// idempotent per order id: the bus may redeliver the same OrderPlaced.
// A returned error means the policy could not decide and the event is retried.
type ValidationPolicy interface {
	Evaluate(ctx context.Context, order domain.OrderPlaced) (Verdict, error)
}

// Compensator is implemented by policies that hold resources per order and can
// release them when a sibling dimension rejects the order.
type Compensator interface {
	Compensate(ctx context.Context, orderID string) error
}

// PolicyFunc adapts a function to ValidationPolicy.
type PolicyFunc func(ctx context.Context, order domain.OrderPlaced) (Verdict, error)

func (f PolicyFunc) Evaluate(ctx context.Context, order domain.OrderPlaced) (Verdict, error) {
	return f(ctx, order)
}
