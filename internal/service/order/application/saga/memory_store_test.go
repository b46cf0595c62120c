package saga

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ordersaga/internal/service/order/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testSnapshot() *domain.OrderSnapshot {
	return &domain.OrderSnapshot{
		ProductIDs:  []string{"p1"},
		CustomerID:  "c1",
		TotalAmount: 42,
		PlacedTime:  time.Date(2024, 5, 1, 11, 59, 0, 0, time.UTC),
	}
}

func newTestStore(clock *fakeClock) *MemoryStore {
	return NewMemoryStore(StoreConfig{
		Shards:       4,
		MaxAge:       time.Minute,
		Retention:    2 * time.Minute,
		TombstoneTTL: time.Hour,
		Clock:        clock.Now,
	})
}

func TestMemoryStore_ExactlyOnceAdvanceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 50; round++ {
		store := newTestStore(newFakeClock())
		orderID := fmt.Sprintf("o-%d", round)

		const callers = 16
		decisions := make(chan domain.JoinDecision, callers)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				dim := domain.DimensionCustomer
				var snap *domain.OrderSnapshot
				if i%2 == 0 {
					dim = domain.DimensionInventory
				} else {
					snap = testSnapshot()
				}
				res, err := store.RecordOutcome(ctx, orderID, dim, domain.OutcomeApproved, snap)
				if err != nil {
					t.Errorf("record: %v", err)
					return
				}
				decisions <- res.Decision
			}(i)
		}
		close(start)
		wg.Wait()
		close(decisions)

		advances := 0
		for d := range decisions {
			switch d {
			case domain.Advance:
				advances++
			case domain.Reject:
				t.Fatalf("unexpected reject")
			}
		}
		if advances != 1 {
			t.Fatalf("round %d: advances = %d, want exactly 1", round, advances)
		}
	}
}

func TestMemoryStore_ExactlyOnceRejectUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeClock())

	var wg sync.WaitGroup
	var mu sync.Mutex
	counts := map[domain.JoinDecision]int{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dim, outcome := domain.DimensionInventory, domain.OutcomeRejected
			if i%2 == 0 {
				dim, outcome = domain.DimensionCustomer, domain.OutcomeApproved
			}
			res, err := store.RecordOutcome(ctx, "o1", dim, outcome, testSnapshot())
			if err != nil {
				t.Errorf("record: %v", err)
				return
			}
			mu.Lock()
			counts[res.Decision]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if counts[domain.Reject] != 1 || counts[domain.Advance] != 0 {
		t.Fatalf("decisions = %v, want exactly one reject and no advance", counts)
	}
}

func TestMemoryStore_AdvanceCarriesCustomerSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeClock())

	if res, _ := store.RecordOutcome(ctx, "o1", domain.DimensionInventory, domain.OutcomeApproved, testSnapshot()); res.Decision != domain.AwaitingOther {
		t.Fatalf("first decision = %s", res.Decision)
	}
	res, err := store.RecordOutcome(ctx, "o1", domain.DimensionCustomer, domain.OutcomeApproved, testSnapshot())
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Decision != domain.Advance || res.Snapshot == nil || res.Snapshot.CustomerID != "c1" {
		t.Fatalf("result = %+v", res)
	}

	// The returned snapshot is a copy.
	res.Snapshot.ProductIDs[0] = "mutated"
	rec, ok, _ := store.Get(ctx, "o1")
	if !ok || rec.Snapshot.ProductIDs[0] != "p1" {
		t.Fatalf("store state leaked through result: %+v", rec.Snapshot)
	}
}

func TestMemoryStore_RejectsPending(t *testing.T) {
	store := newTestStore(newFakeClock())
	if _, err := store.RecordOutcome(context.Background(), "o1", domain.DimensionCustomer, domain.OutcomePending, nil); err != domain.ErrInvalidOutcome {
		t.Fatalf("err = %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("invalid call created a record")
	}
}

func TestMemoryStore_TimeoutReclamation(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(clock)

	if _, err := store.RecordOutcome(ctx, "o1", domain.DimensionCustomer, domain.OutcomeApproved, testSnapshot()); err != nil {
		t.Fatalf("record: %v", err)
	}

	clock.Advance(30 * time.Second)
	report, _ := store.Sweep(ctx, clock.Now())
	if len(report.TimedOut) != 0 || store.Len() != 1 {
		t.Fatalf("record swept too early: %+v", report)
	}

	clock.Advance(31 * time.Second)
	report, _ = store.Sweep(ctx, clock.Now())
	if len(report.TimedOut) != 1 || report.TimedOut[0] != "o1" || len(report.Evicted) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if store.Len() != 0 {
		t.Fatalf("timed-out record not evicted")
	}

	rec, ok, _ := store.Get(ctx, "o1")
	if !ok || rec.State != domain.SagaFailed || rec.Reason != domain.ReasonTimeout {
		t.Fatalf("tombstone = %+v, ok = %v", rec, ok)
	}

	// A late outcome must neither recreate nor advance the saga.
	res, err := store.RecordOutcome(ctx, "o1", domain.DimensionInventory, domain.OutcomeApproved, nil)
	if err != nil || res.Decision != domain.AlreadyTerminal {
		t.Fatalf("late outcome = %+v, %v", res, err)
	}
	if store.Len() != 0 {
		t.Fatalf("late outcome recreated the record")
	}
}

func TestMemoryStore_RetentionAndTombstoneExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(clock)

	store.RecordOutcome(ctx, "o1", domain.DimensionCustomer, domain.OutcomeApproved, testSnapshot())
	store.RecordOutcome(ctx, "o1", domain.DimensionInventory, domain.OutcomeApproved, nil)
	store.AckPayment(ctx, "o1")

	clock.Advance(time.Minute + time.Second)
	report, _ := store.Sweep(ctx, clock.Now())
	if len(report.Evicted) != 0 || len(report.TimedOut) != 0 {
		t.Fatalf("decided record must stay for retention and never time out: %+v", report)
	}
	if res, _ := store.RecordOutcome(ctx, "o1", domain.DimensionInventory, domain.OutcomeApproved, nil); res.Decision != domain.AlreadyTerminal {
		t.Fatalf("duplicate during retention = %s", res.Decision)
	}

	clock.Advance(time.Minute)
	report, _ = store.Sweep(ctx, clock.Now())
	if len(report.Evicted) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if rec, ok, _ := store.Get(ctx, "o1"); !ok || rec.State != domain.SagaPaymentTriggered {
		t.Fatalf("tombstone = %+v", rec)
	}

	clock.Advance(time.Hour)
	store.Sweep(ctx, clock.Now())
	if _, ok, _ := store.Get(ctx, "o1"); ok {
		t.Fatalf("tombstone should have expired")
	}
}

func TestMemoryStore_UnacknowledgedPaymentIsHandedOutAgain(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(clock)

	store.RecordOutcome(ctx, "o1", domain.DimensionCustomer, domain.OutcomeApproved, testSnapshot())
	if res, _ := store.RecordOutcome(ctx, "o1", domain.DimensionInventory, domain.OutcomeApproved, nil); res.Decision != domain.Advance {
		t.Fatalf("decision = %s", res.Decision)
	}

	// a replay right away is still a duplicate
	if res, _ := store.RecordOutcome(ctx, "o1", domain.DimensionInventory, domain.OutcomeApproved, nil); res.Decision != domain.AlreadyTerminal {
		t.Fatalf("early replay = %s", res.Decision)
	}

	clock.Advance(time.Minute)
	res, _ := store.RecordOutcome(ctx, "o1", domain.DimensionInventory, domain.OutcomeApproved, nil)
	if res.Decision != domain.RetryPayment || res.Snapshot == nil || res.Snapshot.CustomerID != "c1" {
		t.Fatalf("replay after retry interval = %+v", res)
	}
	if res, _ := store.RecordOutcome(ctx, "o1", domain.DimensionInventory, domain.OutcomeApproved, nil); res.Decision != domain.AlreadyTerminal {
		t.Fatalf("second replay in the same interval = %s", res.Decision)
	}

	// past retention the record stays and the sweep hands the payment out
	clock.Advance(2 * time.Minute)
	report, _ := store.Sweep(ctx, clock.Now())
	if len(report.Evicted) != 0 || len(report.PaymentRetries) != 1 || report.PaymentRetries[0].OrderID != "o1" {
		t.Fatalf("report = %+v", report)
	}

	store.AckPayment(ctx, "o1")
	clock.Advance(2 * time.Minute)
	report, _ = store.Sweep(ctx, clock.Now())
	if len(report.Evicted) != 1 || len(report.PaymentRetries) != 0 {
		t.Fatalf("report after ack = %+v", report)
	}
}
