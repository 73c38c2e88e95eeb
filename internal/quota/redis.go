package quota

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// consumeScript decrements KEYS[1] when it is positive. It returns the new
// balance, or -1 when the key is missing or already at zero.
var consumeScript = redis.NewScript(`
local v = tonumber(redis.call("GET", KEYS[1]))
if v == nil or v <= 0 then
  return -1
end
return redis.call("DECR", KEYS[1])
`)

// RedisLedger keeps credits as plain integer keys in redis
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLedger stores balances under "<prefix><key>"
func NewRedisLedger(client redis.UniversalClient, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "quota:"
	}
	return &RedisLedger{client: client, prefix: prefix}
}

func (l *RedisLedger) TryConsume(ctx context.Context, key string) (int, error) {
	n, err := consumeScript.Run(ctx, l.client, []string{l.prefix + key}).Int()
	if err != nil {
		return 0, classify(err)
	}
	if n < 0 {
		return 0, insufficient(key)
	}
	return n, nil
}

func (l *RedisLedger) Remaining(ctx context.Context, key string) (int, error) {
	n, err := l.client.Get(ctx, l.prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (l *RedisLedger) Grant(ctx context.Context, key string, credits int) error {
	if err := validGrant(credits); err != nil {
		return err
	}
	return classify(l.client.Set(ctx, l.prefix+key, credits, 0).Err())
}

func (l *RedisLedger) Open(ctx context.Context, key string, credits int) error {
	if err := validGrant(credits); err != nil {
		return err
	}
	return classify(l.client.SetNX(ctx, l.prefix+key, credits, 0).Err())
}
