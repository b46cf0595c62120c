package infrastructure

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"ordersaga/internal/pkg/redis"
)

const unlockScriptName = "lock_release"

// RedisLocker hands out leases stored as SET NX PX keys.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) (*RedisLocker, error) {
	if err := client.LoadScriptFromContent(unlockScriptName, unlockScript); err != nil {
		return nil, errors.Wrap(err, "load lock release script")
	}
	return &RedisLocker{client: client}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := "lock:" + name
	token := uuid.NewString()
	ok, err := l.client.GetClient().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, errors.Wrapf(err, "acquire %s", key)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		// Only the holder may delete the lease.
		_, err := l.client.RunScript(ctx, unlockScriptName, []string{key}, token)
		return errors.Wrapf(err, "release %s", key)
	}
	return release, true, nil
}

const unlockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`
