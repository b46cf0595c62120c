package port

import (
	"context"
	"errors"
)

// ErrClaimInFlight is returned for an event whose validation another attempt
// currently holds. The event is retried once that claim lapses.
var ErrClaimInFlight = errors.New("validation already in flight")

// ClaimState is what a Claim call found.
type ClaimState int

const (
	// ClaimAcquired: the caller owns the key until it completes, releases or
	// the in-flight TTL lapses.
	ClaimAcquired ClaimState = iota
	ClaimInFlight
	ClaimDone
)

// Deduplicator is a two-phase claim. Validators use it so a redelivered event
// does not produce a second outcome, while an attempt that died half way is
// retried once its claim lapses.
type Deduplicator interface {
	Claim(ctx context.Context, key string) (ClaimState, error)
	// Complete marks the key done after the side effect succeeded.
	Complete(ctx context.Context, key string) error
	// Release drops a claim whose side effect failed, so a retry can run now.
	Release(ctx context.Context, key string) error
}
