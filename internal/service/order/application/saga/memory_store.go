package saga

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"ordersaga/internal/service/order/domain"
)

// StoreConfig bounds how long saga state is kept.
type StoreConfig struct {
	Shards int
	// MaxAge is how long a saga may wait for its join before it times out.
	MaxAge time.Duration
	// Retention keeps a decided record around to absorb duplicate deliveries.
	Retention time.Duration
	// TombstoneTTL is how long an evicted order id is still recognised as terminal.
	TombstoneTTL time.Duration
	// PaymentRetryAfter is how long a joined saga waits for its payment
	// acknowledgement before the payment is handed out again.
	PaymentRetryAfter time.Duration
	Clock             func() time.Time
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Shards <= 0 {
		c.Shards = 32
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 5 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = 10 * time.Minute
	}
	if c.TombstoneTTL <= 0 {
		c.TombstoneTTL = 24 * time.Hour
	}
	if c.PaymentRetryAfter <= 0 {
		c.PaymentRetryAfter = time.Minute
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

type tombstone struct {
	state     domain.SagaState
	reason    domain.FailureReason
	decidedAt time.Time
	evictedAt time.Time
}

type shard struct {
	mu         sync.Mutex
	records    map[string]*domain.SagaRecord
	tombstones map[string]tombstone
}

// MemoryStore is an in-process CorrelationStore. Orders hash onto shards and
// every operation on an order runs under its shard's lock.
type MemoryStore struct {
	cfg    StoreConfig
	shards []*shard
}

func NewMemoryStore(cfg StoreConfig) *MemoryStore {
	cfg = cfg.withDefaults()
	s := &MemoryStore{cfg: cfg, shards: make([]*shard, cfg.Shards)}
	for i := range s.shards {
		s.shards[i] = &shard{
			records:    make(map[string]*domain.SagaRecord),
			tombstones: make(map[string]tombstone),
		}
	}
	return s
}

func (s *MemoryStore) shardFor(orderID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *MemoryStore) RecordOutcome(_ context.Context, orderID string, dim domain.Dimension, outcome domain.ValidationOutcome, snapshot *domain.OrderSnapshot) (domain.JoinResult, error) {
	if err := domain.ValidateOutcomeArgs(orderID, dim, outcome); err != nil {
		return domain.JoinResult{}, err
	}
	if dim != domain.DimensionCustomer {
		snapshot = nil
	}

	sh := s.shardFor(orderID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.tombstones[orderID]; ok {
		return domain.JoinResult{Decision: domain.AlreadyTerminal}, nil
	}
	now := s.cfg.Clock()
	rec, ok := sh.records[orderID]
	if !ok {
		rec = domain.NewSagaRecord(orderID, now)
		sh.records[orderID] = rec
	}

	res := rec.Apply(dim, outcome, snapshot, now)
	if res.Decision == domain.AlreadyTerminal && rec.ClaimPaymentRetry(now, s.cfg.PaymentRetryAfter) {
		res = domain.JoinResult{Decision: domain.RetryPayment, Snapshot: rec.Snapshot}
	}
	if res.Snapshot != nil {
		c := res.Snapshot.Clone()
		res.Snapshot = &c
	}
	return res, nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (domain.SweepReport, error) {
	var report domain.SweepReport
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, rec := range sh.records {
			if rec.ClaimPaymentRetry(now, s.cfg.PaymentRetryAfter) {
				report.PaymentRetries = append(report.PaymentRetries, domain.PaymentRetry{OrderID: id, Snapshot: rec.Snapshot.Clone()})
				continue
			}
			switch {
			case !rec.State.Terminal() && now.Sub(rec.CreatedAt) >= s.cfg.MaxAge:
				rec.Expire(now)
				report.TimedOut = append(report.TimedOut, id)
			case rec.State.Terminal() && !rec.PaymentPending() && now.Sub(rec.DecidedAt) >= s.cfg.Retention:
			default:
				continue
			}
			sh.tombstones[id] = tombstone{state: rec.State, reason: rec.Reason, decidedAt: rec.DecidedAt, evictedAt: now}
			delete(sh.records, id)
			report.Evicted = append(report.Evicted, id)
		}
		for id, t := range sh.tombstones {
			if now.Sub(t.evictedAt) >= s.cfg.TombstoneTTL {
				delete(sh.tombstones, id)
			}
		}
		sh.mu.Unlock()
	}
	return report, nil
}

func (s *MemoryStore) AckPayment(_ context.Context, orderID string) error {
	sh := s.shardFor(orderID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if rec, ok := sh.records[orderID]; ok && rec.State == domain.SagaPaymentTriggered {
		rec.PaymentAcked = true
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, orderID string) (domain.SagaRecord, bool, error) {
	sh := s.shardFor(orderID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if rec, ok := sh.records[orderID]; ok {
		out := *rec
		if rec.Snapshot != nil {
			c := rec.Snapshot.Clone()
			out.Snapshot = &c
		}
		return out, true, nil
	}
	if t, ok := sh.tombstones[orderID]; ok {
		return domain.SagaRecord{OrderID: orderID, State: t.state, Reason: t.reason, DecidedAt: t.decidedAt}, true, nil
	}
	return domain.SagaRecord{}, false, nil
}

// Len reports live (non-evicted) records.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}
