package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// ============================================================================
// 外部余额快照缓存
// ============================================================================
//
// 查询个人资料时会去外部账本读一次余额。外部账本很慢，
// 同一个账户短时间内反复刷新页面没必要每次都打到外部，
// 所以把最近一次观测到的外部余额缓存 TTL 时间。
//
// 缓存只影响"多久读一次外部"，不影响对账规则：
// 快照值依旧要走 BalanceStore.Reconcile 的 > 0 判断。
//
// ============================================================================

// BalanceSnapshotCache 外部余额快照
type BalanceSnapshotCache interface {
	// Get 未命中时 ok=false
	Get(ctx context.Context, accountRef string) (value decimal.Decimal, ok bool, err error)
	Set(ctx context.Context, accountRef string, value decimal.Decimal) error
	Invalidate(ctx context.Context, accountRef string) error
}

const snapshotKeyPrefix = "ecoprado:balance:snapshot:"

type redisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) BalanceSnapshotCache {
	return &redisSnapshotCache{client: client, ttl: ttl}
}

func (c *redisSnapshotCache) Get(ctx context.Context, accountRef string) (decimal.Decimal, bool, error) {
	raw, err := c.client.Get(ctx, snapshotKeyPrefix+accountRef).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, err
	}
	return value, true, nil
}

func (c *redisSnapshotCache) Set(ctx context.Context, accountRef string, value decimal.Decimal) error {
	return c.client.Set(ctx, snapshotKeyPrefix+accountRef, value.String(), c.ttl).Err()
}

func (c *redisSnapshotCache) Invalidate(ctx context.Context, accountRef string) error {
	return c.client.Del(ctx, snapshotKeyPrefix+accountRef).Err()
}

type snapshotEntry struct {
	value     decimal.Decimal
	expiresAt time.Time
}

type memorySnapshotCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]snapshotEntry
}

// NewMemorySnapshotCache 未启用 Redis 时使用
func NewMemorySnapshotCache(ttl time.Duration) BalanceSnapshotCache {
	return &memorySnapshotCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]snapshotEntry),
	}
}

func (c *memorySnapshotCache) Get(ctx context.Context, accountRef string) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[accountRef]
	if !ok {
		return decimal.Zero, false, nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, accountRef)
		return decimal.Zero, false, nil
	}
	return entry.value, true, nil
}

func (c *memorySnapshotCache) Set(ctx context.Context, accountRef string, value decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[accountRef] = snapshotEntry{value: value, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *memorySnapshotCache) Invalidate(ctx context.Context, accountRef string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, accountRef)
	return nil
}
