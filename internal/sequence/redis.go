package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/store"
)

// KeyPrefix namespaces the per-day counters in Redis.
const KeyPrefix = "ledger:seq:"

// Incrementer is the subset of a Redis client used by the Redis allocator.
type Incrementer interface {
	Incr(ctx context.Context, key string) (int64, error)
	// Raise sets key to n unless it already holds a value >= n.
	Raise(ctx context.Context, key string, n int64) error
}

// Redis allocates from INCR counters in Redis, for deployments where several
// ledger instances post against databases that cannot share a row lock.
// Candidates are still checked against the posting transaction.
//
// A counter that fell behind the stored journals (the key was flushed or
// evicted) is raised to the day's highest stored number once its
// candidates run out, and allocation is tried again.
type Redis struct {
	client Incrementer
}

// NewRedis returns an allocator backed by client.
func NewRedis(client Incrementer) *Redis {
	return &Redis{client: client}
}

// Next implements Allocator.
func (r *Redis) Next(ctx context.Context, tx store.Tx, date time.Time) (string, error) {
	day := id.DayKey(date)
	incr := func(ctx context.Context, day string) (int64, error) {
		n, err := r.client.Incr(ctx, KeyPrefix+day)
		if err != nil {
			return 0, fmt.Errorf("redis counter %s: %w", day, err)
		}
		return n, nil
	}

	number, err := allocate(ctx, tx, date, incr)
	if !errors.Is(err, ErrExhausted) {
		return number, err
	}

	last, lerr := tx.LastJournalNumber(ctx, day)
	if lerr != nil {
		return "", lerr
	}
	if last == "" {
		return "", err
	}
	_, seq, perr := id.ParseJournalNumber(last)
	if perr != nil {
		return "", perr
	}
	if rerr := r.client.Raise(ctx, KeyPrefix+day, seq); rerr != nil {
		return "", fmt.Errorf("reseeding redis counter %s: %w", day, rerr)
	}
	return allocate(ctx, tx, date, incr)
}

// RedisClient adapts go-redis to Incrementer.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to addr.
func NewRedisClient(addr, password string, db int) *RedisClient {
	return &RedisClient{client: redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})}
}

// Incr atomically increments key.
func (c *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// raiseScript sets KEYS[1] to ARGV[1] when the stored value is lower.
var raiseScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if cur < tonumber(ARGV[1]) then
	redis.call('SET', KEYS[1], ARGV[1])
end
return 0
`)

// Raise sets key to n unless it already holds a value >= n.
func (c *RedisClient) Raise(ctx context.Context, key string, n int64) error {
	return raiseScript.Run(ctx, c.client, []string{key}, n).Err()
}

// Ping checks the connection.
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *RedisClient) Close() error {
	return c.client.Close()
}
