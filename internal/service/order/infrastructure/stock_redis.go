package infrastructure

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"ordersaga/internal/pkg/redis"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

const (
	reserveScriptName = "stock_reserve"
	releaseScriptName = "stock_release"

	stockKey = "{inventory}:stock"
)

func reservationKey(orderID string) string { return "{inventory}:reservation:" + orderID }
func reservedItemsKey(orderID string) string {
	return "{inventory}:items:" + orderID
}

// RedisStockPolicy reserves one unit per product line from a stock hash and
// releases the reservation when the customer side rejects the order.
// Reservation state per order makes both operations idempotent.
type RedisStockPolicy struct {
	client *redis.Client
	ttl    time.Duration
}

var (
	_ port.ValidationPolicy = (*RedisStockPolicy)(nil)
	_ port.Compensator      = (*RedisStockPolicy)(nil)
)

func NewRedisStockPolicy(client *redis.Client, ttl time.Duration) (*RedisStockPolicy, error) {
	if err := client.LoadScriptFromContent(reserveScriptName, reserveScript); err != nil {
		return nil, errors.Wrap(err, "load reserve script")
	}
	if err := client.LoadScriptFromContent(releaseScriptName, releaseScript); err != nil {
		return nil, errors.Wrap(err, "load release script")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStockPolicy{client: client, ttl: ttl}, nil
}

func (p *RedisStockPolicy) Evaluate(ctx context.Context, order domain.OrderPlaced) (port.Verdict, error) {
	counts := make(map[string]int, len(order.ProductIDs))
	for _, id := range order.ProductIDs {
		counts[id]++
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	args := []interface{}{p.ttl.Milliseconds()}
	for _, id := range ids {
		args = append(args, id, counts[id])
	}
	keys := []string{stockKey, reservationKey(order.OrderID), reservedItemsKey(order.OrderID)}
	res, err := p.client.RunScript(ctx, reserveScriptName, keys, args...)
	if err != nil {
		return port.Deny, errors.Wrapf(err, "reserve stock for %s", order.OrderID)
	}
	code, _ := res.(int64)
	return code == 1, nil
}

func (p *RedisStockPolicy) Compensate(ctx context.Context, orderID string) error {
	keys := []string{stockKey, reservationKey(orderID), reservedItemsKey(orderID)}
	_, err := p.client.RunScript(ctx, releaseScriptName, keys, p.ttl.Milliseconds())
	return errors.Wrapf(err, "release stock for %s", orderID)
}

// SetStock seeds the available quantity of a product.
func (p *RedisStockPolicy) SetStock(ctx context.Context, productID string, qty int) error {
	return errors.Wrapf(p.client.GetClient().HSet(ctx, stockKey, productID, qty).Err(), "set stock %s", productID)
}

// Stock reports the available quantity of a product.
func (p *RedisStockPolicy) Stock(ctx context.Context, productID string) (int, error) {
	n, err := p.client.GetClient().HGet(ctx, stockKey, productID).Int()
	if err != nil {
		return 0, errors.Wrapf(err, "get stock %s", productID)
	}
	return n, nil
}

// KEYS: stock hash, reservation state, reserved items
// ARGV: ttl ms, then product id / quantity pairs
// Returns 1 when the order holds a reservation.
const reserveScript = `
local state = redis.call('GET', KEYS[2])
if state == 'RESERVED' then
  return 1
end
if state then
  return 0
end
for i = 2, #ARGV, 2 do
  local have = tonumber(redis.call('HGET', KEYS[1], ARGV[i]) or '0')
  if have < tonumber(ARGV[i + 1]) then
    redis.call('SET', KEYS[2], 'REJECTED', 'PX', ARGV[1])
    return 0
  end
end
for i = 2, #ARGV, 2 do
  redis.call('HINCRBY', KEYS[1], ARGV[i], -tonumber(ARGV[i + 1]))
  redis.call('HSET', KEYS[3], ARGV[i], ARGV[i + 1])
end
redis.call('SET', KEYS[2], 'RESERVED', 'PX', ARGV[1])
redis.call('PEXPIRE', KEYS[3], ARGV[1])
return 1
`

// A release without a prior reservation leaves a RELEASED marker so a late
// reserve for the same order is refused.
const releaseScript = `
local state = redis.call('GET', KEYS[2])
if state == 'RESERVED' then
  local items = redis.call('HGETALL', KEYS[3])
  for i = 1, #items, 2 do
    redis.call('HINCRBY', KEYS[1], items[i], tonumber(items[i + 1]))
  end
  redis.call('DEL', KEYS[3])
  redis.call('SET', KEYS[2], 'RELEASED', 'PX', ARGV[1])
  return 1
end
if not state then
  redis.call('SET', KEYS[2], 'RELEASED', 'PX', ARGV[1])
end
return 0
`
