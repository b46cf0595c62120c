// internal/service/order/domain/saga.go
package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidOutcome   = errors.New("outcome must be APPROVED or REJECTED")
	ErrUnknownDimension = errors.New("unknown dimension")
)

// Dimension is one independent validation step of the saga.
type Dimension string

const (
	DimensionCustomer  Dimension = "customer"
	DimensionInventory Dimension = "inventory"
)

// ValidationOutcome is the result a validator reported for one dimension.
type ValidationOutcome string

const (
	OutcomePending  ValidationOutcome = "PENDING"
	OutcomeApproved ValidationOutcome = "APPROVED"
	OutcomeRejected ValidationOutcome = "REJECTED"
)

// JoinDecision is what a single RecordOutcome call observed.
type JoinDecision int

const (
	AwaitingOther JoinDecision = iota
	Advance
	AlreadyTerminal
	Reject
	// RetryPayment hands a joined saga whose payment was never acknowledged
	// back to the caller, at most once per retry interval.
	RetryPayment
)

func (d JoinDecision) String() string {
	switch d {
	case AwaitingOther:
		return "awaiting_other"
	case Advance:
		return "advance"
	case AlreadyTerminal:
		return "already_terminal"
	case Reject:
		return "reject"
	case RetryPayment:
		return "retry_payment"
	}
	return "unknown"
}

// JoinResult is returned by the correlation store. Snapshot is set on Advance
// and RetryPayment, Reason on Reject.
type JoinResult struct {
	Decision JoinDecision
	Snapshot *OrderSnapshot
	Reason   FailureReason
}

// SagaRecord is the per-order accumulator kept by the correlation store.
type SagaRecord struct {
	OrderID   string
	Customer  ValidationOutcome
	Inventory ValidationOutcome
	State     SagaState
	Reason    FailureReason
	Snapshot  *OrderSnapshot
	CreatedAt time.Time
	DecidedAt time.Time
	// PaymentAcked is set once PaymentProcessed was published for a joined saga.
	PaymentAcked     bool
	PaymentAttemptAt time.Time
}

// NewSagaRecord starts a record with both dimensions pending.
func NewSagaRecord(orderID string, now time.Time) *SagaRecord {
	return &SagaRecord{
		OrderID:   orderID,
		Customer:  OutcomePending,
		Inventory: OutcomePending,
		State:     SagaAwaiting,
		CreatedAt: now,
	}
}

func (r *SagaRecord) outcome(dim Dimension) *ValidationOutcome {
	if dim == DimensionCustomer {
		return &r.Customer
	}
	return &r.Inventory
}

// Apply records one outcome and returns the join decision. Callers must
// serialize Apply per record; the first outcome per dimension wins and any
// rejection short-circuits the join.
func (r *SagaRecord) Apply(dim Dimension, outcome ValidationOutcome, snapshot *OrderSnapshot, now time.Time) JoinResult {
	if r.State.Terminal() {
		return JoinResult{Decision: AlreadyTerminal}
	}
	slot := r.outcome(dim)
	if *slot != OutcomePending {
		return JoinResult{Decision: AwaitingOther}
	}
	*slot = outcome
	if snapshot != nil && r.Snapshot == nil {
		s := snapshot.Clone()
		r.Snapshot = &s
	}

	if outcome == OutcomeRejected {
		r.State = SagaFailed
		r.Reason = FailureReason(dim)
		r.DecidedAt = now
		return JoinResult{Decision: Reject, Reason: r.Reason}
	}
	if r.Customer == OutcomeApproved && r.Inventory == OutcomeApproved {
		r.State = SagaPaymentTriggered
		r.DecidedAt = now
		r.PaymentAttemptAt = now
		return JoinResult{Decision: Advance, Snapshot: r.Snapshot}
	}
	return JoinResult{Decision: AwaitingOther}
}

// Expire forces a non-terminal record into SagaFailed(timeout).
func (r *SagaRecord) Expire(now time.Time) bool {
	if r.State.Terminal() {
		return false
	}
	r.State = SagaFailed
	r.Reason = ReasonTimeout
	r.DecidedAt = now
	return true
}

// PaymentPending reports a joined saga whose payment was not acknowledged.
func (r *SagaRecord) PaymentPending() bool {
	return r.State == SagaPaymentTriggered && !r.PaymentAcked
}

// ClaimPaymentRetry takes the next payment attempt when the last one is at
// least retryAfter old. Concurrent callers see true at most once per interval.
func (r *SagaRecord) ClaimPaymentRetry(now time.Time, retryAfter time.Duration) bool {
	if !r.PaymentPending() || r.Snapshot == nil || now.Sub(r.PaymentAttemptAt) < retryAfter {
		return false
	}
	r.PaymentAttemptAt = now
	return true
}

// ValidateOutcomeArgs rejects calls the store must never see.
func ValidateOutcomeArgs(orderID string, dim Dimension, outcome ValidationOutcome) error {
	if orderID == "" {
		return ErrInvalidOrder
	}
	if dim != DimensionCustomer && dim != DimensionInventory {
		return fmt.Errorf("%w %q", ErrUnknownDimension, dim)
	}
	if outcome != OutcomeApproved && outcome != OutcomeRejected {
		return ErrInvalidOutcome
	}
	return nil
}

// PaymentRetry is a joined saga handed out by a sweep for another payment attempt.
type PaymentRetry struct {
	OrderID  string
	Snapshot OrderSnapshot
}

// SweepReport lists what a sweep did.
type SweepReport struct {
	TimedOut       []string
	Evicted        []string
	PaymentRetries []PaymentRetry
}
