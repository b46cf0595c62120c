package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"ordersaga/internal/pkg/redis"
	"ordersaga/internal/service/order/domain"
)

const (
	recordScriptName = "saga_record"
	sweepScriptName  = "saga_sweep"
	ackScriptName    = "saga_ack_payment"

	// Every key shares one hash tag so the scripts stay single-slot on a cluster.
	sagaKeyPrefix = "{saga}:"
	sagaActiveKey = sagaKeyPrefix + "active"
	sagaDoneKey   = sagaKeyPrefix + "decided"
	// joined sagas whose payment is not acknowledged, scored by last attempt
	sagaUnpaidKey = sagaKeyPrefix + "unpaid"

	sweepBatch = 500
)

func sagaOrderKey(id string) string { return sagaKeyPrefix + "order:" + id }
func sagaTombKey(id string) string  { return sagaKeyPrefix + "tomb:" + id }

// RedisCorrelationStore keeps saga records in Redis so several coordinator
// replicas can share them. Each RecordOutcome is one Lua script.
type RedisCorrelationStore struct {
	client            *redis.Client
	maxAge            time.Duration
	retention         time.Duration
	tombstoneTTL      time.Duration
	paymentRetryAfter time.Duration
	clock             func() time.Time
}

func NewRedisCorrelationStore(client *redis.Client, maxAge, retention, tombstoneTTL, paymentRetryAfter time.Duration) (*RedisCorrelationStore, error) {
	if err := client.LoadScriptFromContent(recordScriptName, recordScript); err != nil {
		return nil, errors.Wrap(err, "load saga record script")
	}
	if err := client.LoadScriptFromContent(sweepScriptName, sweepScript); err != nil {
		return nil, errors.Wrap(err, "load saga sweep script")
	}
	if err := client.LoadScriptFromContent(ackScriptName, ackScript); err != nil {
		return nil, errors.Wrap(err, "load saga ack script")
	}
	if paymentRetryAfter <= 0 {
		paymentRetryAfter = time.Minute
	}
	return &RedisCorrelationStore{
		client:            client,
		maxAge:            maxAge,
		retention:         retention,
		tombstoneTTL:      tombstoneTTL,
		paymentRetryAfter: paymentRetryAfter,
		clock:             time.Now,
	}, nil
}

func (s *RedisCorrelationStore) RecordOutcome(ctx context.Context, orderID string, dim domain.Dimension, outcome domain.ValidationOutcome, snapshot *domain.OrderSnapshot) (domain.JoinResult, error) {
	if err := domain.ValidateOutcomeArgs(orderID, dim, outcome); err != nil {
		return domain.JoinResult{}, err
	}
	var snap string
	if dim == domain.DimensionCustomer && snapshot != nil {
		b, err := json.Marshal(snapshot)
		if err != nil {
			return domain.JoinResult{}, errors.Wrap(err, "marshal snapshot")
		}
		snap = string(b)
	}

	keys := []string{sagaOrderKey(orderID), sagaTombKey(orderID), sagaActiveKey, sagaDoneKey, sagaUnpaidKey}
	raw, err := s.client.RunScript(ctx, recordScriptName, keys,
		string(dim), string(outcome), snap, s.clock().UnixMilli(), orderID, s.paymentRetryAfter.Milliseconds())
	if err != nil {
		return domain.JoinResult{}, errors.Wrapf(err, "record outcome for %s", orderID)
	}
	reply, ok := raw.([]interface{})
	if !ok || len(reply) == 0 {
		return domain.JoinResult{}, errors.Errorf("unexpected record reply %T", raw)
	}
	code, _ := reply[0].(int64)
	switch code {
	case 0:
		return domain.JoinResult{Decision: domain.AwaitingOther}, nil
	case 1, 4:
		res := domain.JoinResult{Decision: domain.Advance}
		if code == 4 {
			res.Decision = domain.RetryPayment
		}
		if len(reply) > 1 {
			if js, _ := reply[1].(string); js != "" {
				o, err := decodeSnapshot(js)
				if err != nil {
					return domain.JoinResult{}, err
				}
				res.Snapshot = &o
			}
		}
		return res, nil
	case 2:
		reason := domain.FailureReason(dim)
		if len(reply) > 1 {
			if r, _ := reply[1].(string); r != "" {
				reason = domain.FailureReason(r)
			}
		}
		return domain.JoinResult{Decision: domain.Reject, Reason: reason}, nil
	case 3:
		return domain.JoinResult{Decision: domain.AlreadyTerminal}, nil
	}
	return domain.JoinResult{}, errors.Errorf("unknown record code %d", code)
}

func (s *RedisCorrelationStore) Sweep(ctx context.Context, now time.Time) (domain.SweepReport, error) {
	var report domain.SweepReport
	for {
		raw, err := s.client.RunScript(ctx, sweepScriptName, []string{sagaActiveKey, sagaDoneKey, sagaUnpaidKey},
			now.UnixMilli(), s.maxAge.Milliseconds(), s.retention.Milliseconds(), s.tombstoneTTL.Milliseconds(), sagaKeyPrefix, sweepBatch,
			s.paymentRetryAfter.Milliseconds())
		if err != nil {
			return report, errors.Wrap(err, "sweep sagas")
		}
		reply, ok := raw.([]interface{})
		if !ok || len(reply) != 3 {
			return report, errors.Errorf("unexpected sweep reply %T", raw)
		}
		timedOut, evicted := toStrings(reply[0]), toStrings(reply[1])
		report.TimedOut = append(report.TimedOut, timedOut...)
		report.Evicted = append(report.Evicted, evicted...)
		retries := toStrings(reply[2])
		for i := 0; i+1 < len(retries); i += 2 {
			o, err := decodeSnapshot(retries[i+1])
			if err != nil {
				return report, err
			}
			report.PaymentRetries = append(report.PaymentRetries, domain.PaymentRetry{OrderID: retries[i], Snapshot: o})
		}
		if len(evicted) < sweepBatch {
			return report, nil
		}
	}
}

func (s *RedisCorrelationStore) AckPayment(ctx context.Context, orderID string) error {
	_, err := s.client.RunScript(ctx, ackScriptName, []string{sagaOrderKey(orderID), sagaUnpaidKey}, orderID)
	return errors.Wrapf(err, "ack payment for %s", orderID)
}

func (s *RedisCorrelationStore) Get(ctx context.Context, orderID string) (domain.SagaRecord, bool, error) {
	rdb := s.client.GetClient()
	fields, err := rdb.HGetAll(ctx, sagaOrderKey(orderID)).Result()
	if err != nil {
		return domain.SagaRecord{}, false, errors.Wrapf(err, "get saga %s", orderID)
	}
	if len(fields) > 0 {
		rec := domain.SagaRecord{
			OrderID:   orderID,
			Customer:  domain.ValidationOutcome(fields["customer"]),
			Inventory: domain.ValidationOutcome(fields["inventory"]),
			State:     domain.SagaState(fields["state"]),
			Reason:    domain.FailureReason(fields["reason"]),
			CreatedAt: fromMillis(fields["createdAt"]),
			DecidedAt: fromMillis(fields["decidedAt"]),

			PaymentAcked:     fields["paid"] == "1",
			PaymentAttemptAt: fromMillis(fields["attemptAt"]),
		}
		if js := fields["snapshot"]; js != "" {
			var o domain.OrderSnapshot
			if err := json.Unmarshal([]byte(js), &o); err == nil {
				rec.Snapshot = &o
			}
		}
		return rec, true, nil
	}

	tomb, err := rdb.HGetAll(ctx, sagaTombKey(orderID)).Result()
	if err != nil {
		return domain.SagaRecord{}, false, errors.Wrapf(err, "get saga tombstone %s", orderID)
	}
	if len(tomb) == 0 {
		return domain.SagaRecord{}, false, nil
	}
	return domain.SagaRecord{
		OrderID:   orderID,
		State:     domain.SagaState(tomb["state"]),
		Reason:    domain.FailureReason(tomb["reason"]),
		DecidedAt: fromMillis(tomb["decidedAt"]),
	}, true, nil
}

func decodeSnapshot(js string) (domain.OrderSnapshot, error) {
	var o domain.OrderSnapshot
	if err := json.Unmarshal([]byte(js), &o); err != nil {
		return o, errors.Wrap(err, "decode stored snapshot")
	}
	return o, nil
}

func fromMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func toStrings(v interface{}) []string {
	items, _ := v.([]interface{})
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// KEYS: order hash, tombstone, active zset, decided zset, unpaid zset
// ARGV: dimension, outcome, snapshot json, now ms, order id, payment retry ms
// Reply: {0} awaiting, {1, snapshot} advance, {2, reason} reject, {3} terminal,
// {4, snapshot} retry payment
const recordScript = `
if redis.call('EXISTS', KEYS[2]) == 1 then
  return {3}
end
local state = redis.call('HGET', KEYS[1], 'state')
if not state then
  redis.call('HSET', KEYS[1], 'state', 'AWAITING', 'customer', 'PENDING', 'inventory', 'PENDING', 'createdAt', ARGV[4])
  redis.call('ZADD', KEYS[3], ARGV[4], ARGV[5])
  state = 'AWAITING'
end
if state ~= 'AWAITING' then
  local attempt = redis.call('ZSCORE', KEYS[5], ARGV[5])
  if state == 'PAYMENT_TRIGGERED' and attempt and tonumber(ARGV[4]) - tonumber(attempt) >= tonumber(ARGV[6]) then
    redis.call('ZADD', KEYS[5], ARGV[4], ARGV[5])
    redis.call('HSET', KEYS[1], 'attemptAt', ARGV[4])
    return {4, redis.call('HGET', KEYS[1], 'snapshot') or ''}
  end
  return {3}
end
if redis.call('HGET', KEYS[1], ARGV[1]) ~= 'PENDING' then
  return {0}
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if ARGV[3] ~= '' and redis.call('HEXISTS', KEYS[1], 'snapshot') == 0 then
  redis.call('HSET', KEYS[1], 'snapshot', ARGV[3])
end
if ARGV[2] == 'REJECTED' then
  redis.call('HSET', KEYS[1], 'state', 'FAILED', 'reason', ARGV[1], 'decidedAt', ARGV[4])
  redis.call('ZREM', KEYS[3], ARGV[5])
  redis.call('ZADD', KEYS[4], ARGV[4], ARGV[5])
  return {2, ARGV[1]}
end
if redis.call('HGET', KEYS[1], 'customer') == 'APPROVED' and redis.call('HGET', KEYS[1], 'inventory') == 'APPROVED' then
  redis.call('HSET', KEYS[1], 'state', 'PAYMENT_TRIGGERED', 'decidedAt', ARGV[4], 'attemptAt', ARGV[4])
  redis.call('ZREM', KEYS[3], ARGV[5])
  redis.call('ZADD', KEYS[4], ARGV[4], ARGV[5])
  redis.call('ZADD', KEYS[5], ARGV[4], ARGV[5])
  return {1, redis.call('HGET', KEYS[1], 'snapshot') or ''}
end
return {0}
`

// KEYS: active zset, decided zset, unpaid zset
// ARGV: now ms, max age ms, retention ms, tombstone ttl ms, key prefix, batch, payment retry ms
// Reply: {timed out ids, evicted ids, {id, snapshot, id, snapshot, ...} payment retries}
const sweepScript = `
local now = tonumber(ARGV[1])
local ttl = tonumber(ARGV[4])
local prefix = ARGV[5]
local batch = tonumber(ARGV[6])
local timedOut = {}
local evicted = {}
local retries = {}

local unpaid = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', now - tonumber(ARGV[7]), 'LIMIT', 0, batch)
for _, id in ipairs(unpaid) do
  local snap = redis.call('HGET', prefix .. 'order:' .. id, 'snapshot')
  if snap then
    redis.call('ZADD', KEYS[3], now, id)
    redis.call('HSET', prefix .. 'order:' .. id, 'attemptAt', tostring(now))
    table.insert(retries, id)
    table.insert(retries, snap)
  else
    redis.call('ZREM', KEYS[3], id)
  end
end

local function evict(id, state, reason, decidedAt)
  local tomb = prefix .. 'tomb:' .. id
  redis.call('DEL', tomb)
  redis.call('HSET', tomb, 'state', state, 'reason', reason, 'decidedAt', decidedAt)
  redis.call('PEXPIRE', tomb, ttl)
  redis.call('DEL', prefix .. 'order:' .. id)
  table.insert(evicted, id)
end

local stale = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', now - tonumber(ARGV[2]), 'LIMIT', 0, batch)
for _, id in ipairs(stale) do
  redis.call('ZREM', KEYS[1], id)
  local state = redis.call('HGET', prefix .. 'order:' .. id, 'state')
  if state == 'AWAITING' then
    table.insert(timedOut, id)
    evict(id, 'FAILED', 'timeout', tostring(now))
  end
end

local done = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', now - tonumber(ARGV[3]), 'LIMIT', 0, batch - #evicted)
for _, id in ipairs(done) do
  if redis.call('ZSCORE', KEYS[3], id) then
    -- kept until its payment is acknowledged, looked at again after another retention
    redis.call('ZADD', KEYS[2], now, id)
  else
    redis.call('ZREM', KEYS[2], id)
    local rec = redis.call('HMGET', prefix .. 'order:' .. id, 'state', 'reason', 'decidedAt')
    if rec[1] then
      evict(id, rec[1], rec[2] or '', rec[3] or '')
    end
  end
end
return {timedOut, evicted, retries}
`

// KEYS: order hash, unpaid zset
// ARGV: order id
const ackScript = `
if redis.call('HGET', KEYS[1], 'state') == 'PAYMENT_TRIGGERED' then
  redis.call('HSET', KEYS[1], 'paid', '1')
end
redis.call('ZREM', KEYS[2], ARGV[1])
return 1
`
