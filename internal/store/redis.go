package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript atomically releases a lease only if it is still held by
// the caller's value, so a node that already lost the lease cannot drop
// its successor's.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// renewScript atomically extends a lease's TTL only if still held by the
// caller's value.
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`

// RedisCoordinator implements Coordinator on top of go-redis.
type RedisCoordinator struct {
	client *redis.Client
}

// NewRedisCoordinator dials addr and verifies connectivity.
func NewRedisCoordinator(addr, password string, db int) (*RedisCoordinator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCoordinator{client: client}, nil
}

func (c *RedisCoordinator) AcquireLease(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (c *RedisCoordinator) RenewLease(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	res, err := c.client.Eval(ctx, renewScript, []string{key}, value, ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (c *RedisCoordinator) ReleaseLease(ctx context.Context, key, value string) error {
	_, err := c.client.Eval(ctx, releaseScript, []string{key}, value).Result()
	return err
}

func (c *RedisCoordinator) IncrementEpoch(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, "epoch:"+key).Result()
}

func (c *RedisCoordinator) Close() error {
	return c.client.Close()
}
