// internal/service/order/domain/state.go
package domain

// State is the lifecycle status of a persisted order.
type State string

const (
	StatePlaced    State = "PLACED"    // accepted at intake, validations in flight
	StateConfirmed State = "CONFIRMED" // payment processed and projected
	StateFailed    State = "FAILED"
)

// SagaState is the join state of one order's saga.
type SagaState string

const (
	SagaAwaiting         SagaState = "AWAITING"
	SagaPaymentTriggered SagaState = "PAYMENT_TRIGGERED"
	SagaFailed           SagaState = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s SagaState) Terminal() bool {
	return s == SagaPaymentTriggered || s == SagaFailed
}

// FailureReason explains why a saga ended in SagaFailed.
type FailureReason string

const (
	ReasonNone      FailureReason = ""
	ReasonCustomer  FailureReason = "customer"
	ReasonInventory FailureReason = "inventory"
	ReasonTimeout   FailureReason = "timeout"
)
