package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"ordersaga/internal/pkg/redis"
	"ordersaga/internal/service/order/domain/port"
)

const (
	claimScriptName = "dedupe_claim"

	claimPending = "PENDING"
	claimDone    = "DONE"

	defaultClaimTTL  = 30 * time.Second
	defaultDedupeTTL = 24 * time.Hour
)

// RedisDeduplicator keeps claims in Redis so every validator replica sees
// the same claim. A PENDING claim lapses after claimTTL, a DONE one after ttl.
type RedisDeduplicator struct {
	client   *redis.Client
	claimTTL time.Duration
	ttl      time.Duration
}

func NewRedisDeduplicator(client *redis.Client, claimTTL, ttl time.Duration) (*RedisDeduplicator, error) {
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	if err := client.LoadScriptFromContent(claimScriptName, claimScript); err != nil {
		return nil, errors.Wrap(err, "load dedupe claim script")
	}
	return &RedisDeduplicator{client: client, claimTTL: claimTTL, ttl: ttl}, nil
}

func (d *RedisDeduplicator) Claim(ctx context.Context, key string) (port.ClaimState, error) {
	raw, err := d.client.RunScript(ctx, claimScriptName, []string{key}, d.claimTTL.Milliseconds())
	if err != nil {
		return port.ClaimInFlight, errors.Wrapf(err, "claim %s", key)
	}
	code, _ := raw.(int64)
	switch code {
	case 0:
		return port.ClaimAcquired, nil
	case 2:
		return port.ClaimDone, nil
	}
	return port.ClaimInFlight, nil
}

func (d *RedisDeduplicator) Complete(ctx context.Context, key string) error {
	return errors.Wrapf(d.client.GetClient().Set(ctx, key, claimDone, d.ttl).Err(), "complete %s", key)
}

func (d *RedisDeduplicator) Release(ctx context.Context, key string) error {
	return errors.Wrapf(d.client.GetClient().Del(ctx, key).Err(), "release %s", key)
}

// KEYS: claim key
// ARGV: claim ttl ms
// Reply: 0 acquired, 1 in flight, 2 done
const claimScript = `
local v = redis.call('GET', KEYS[1])
if not v then
  redis.call('SET', KEYS[1], '` + claimPending + `', 'PX', ARGV[1])
  return 0
end
if v == '` + claimDone + `' then
  return 2
end
return 1
`

type dedupeEntry struct {
	done    bool
	expires time.Time
}

// MemoryDeduplicator is the single-process variant. Expired entries are
// pruned while claiming, at most once per prune interval.
type MemoryDeduplicator struct {
	mu            sync.Mutex
	entries       map[string]dedupeEntry
	claimTTL      time.Duration
	ttl           time.Duration
	pruneInterval time.Duration
	lastPrune     time.Time
	clock         func() time.Time
}

func NewMemoryDeduplicator(claimTTL, ttl time.Duration) *MemoryDeduplicator {
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &MemoryDeduplicator{
		entries:       make(map[string]dedupeEntry),
		claimTTL:      claimTTL,
		ttl:           ttl,
		pruneInterval: time.Minute,
		clock:         time.Now,
	}
}

func (d *MemoryDeduplicator) Claim(_ context.Context, key string) (port.ClaimState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock()
	d.prune(now)
	if e, ok := d.entries[key]; ok && now.Before(e.expires) {
		if e.done {
			return port.ClaimDone, nil
		}
		return port.ClaimInFlight, nil
	}
	d.entries[key] = dedupeEntry{expires: now.Add(d.claimTTL)}
	return port.ClaimAcquired, nil
}

func (d *MemoryDeduplicator) Complete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[key] = dedupeEntry{done: true, expires: d.clock().Add(d.ttl)}
	return nil
}

func (d *MemoryDeduplicator) Release(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.entries, key)
	d.mu.Unlock()
	return nil
}

// Len reports the entries currently held, expired ones included until pruned.
func (d *MemoryDeduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *MemoryDeduplicator) prune(now time.Time) {
	if now.Sub(d.lastPrune) < d.pruneInterval {
		return
	}
	d.lastPrune = now
	for k, e := range d.entries {
		if !now.Before(e.expires) {
			delete(d.entries, k)
		}
	}
}
