package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery"
)

// counterTTL outlives the day a counter belongs to so late releases land.
const counterTTL = 48 * time.Hour

// reserveScript increments only when the result stays within the limit.
// Returns {admitted, used}.
var reserveScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
local n = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
if used + n > limit then
	return {0, used}
end
used = redis.call('INCRBY', KEYS[1], n)
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return {1, used}
`)

// releaseScript decrements without going below zero.
var releaseScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
local left = used - tonumber(ARGV[1])
if left < 0 then
	left = 0
end
redis.call('SET', KEYS[1], left, 'KEEPTTL')
return left
`)

// RedisQuotaStore shares daily counters between instances. Each Reserve is
// one Lua script, which Redis runs atomically. Counters expire on their own.
type RedisQuotaStore struct {
	client redis.UniversalClient
	prefix string
}

var _ delivery.QuotaStore = (*RedisQuotaStore)(nil)

// NewRedisQuotaStore wraps an existing client.
func NewRedisQuotaStore(client redis.UniversalClient, prefix string) *RedisQuotaStore {
	if prefix == "" {
		prefix = config.DefaultRedisKeyPrefix
	}
	return &RedisQuotaStore{client: client, prefix: prefix}
}

// NewRedisQuotaStoreFromConfig connects to the configured server.
func NewRedisQuotaStoreFromConfig(cfg config.RedisConfig) *RedisQuotaStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisQuotaStore(client, cfg.KeyPrefix)
}

func (s *RedisQuotaStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisQuotaStore) Reserve(ctx context.Context, key string, n, limit int64) (int64, error) {
	res, err := reserveScript.Run(ctx, s.client, []string{s.key(key)}, n, limit, counterTTL.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("failed to reserve quota: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("unexpected reserve reply %v", res)
	}
	if res[0] == 0 {
		return res[1], delivery.QuotaExceededError(key, res[1], n, limit)
	}
	return res[1], nil
}

func (s *RedisQuotaStore) Release(ctx context.Context, key string, n int64) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.key(key)}, n).Err(); err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	return nil
}

func (s *RedisQuotaStore) Used(ctx context.Context, key string) (int64, error) {
	used, err := s.client.Get(ctx, s.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota: %w", err)
	}
	return used, nil
}

func (s *RedisQuotaStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisQuotaStore) Close() error {
	return s.client.Close()
}
