package sign

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache 缓存接口，记录已处理过的请求ID
// 可以有不同的实现，如Redis缓存、内存缓存等
type Cache interface {
	// SetNX 键不存在时写入并返回true，已存在返回false
	SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error)
}

// RedisCache Redis缓存实现
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
	}
}

func (rc *RedisCache) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	return rc.client.SetNX(ctx, key, value, expiration).Result()
}

const defaultMemoryCacheSize = 100000

// MemoryCache 进程内缓存，超出容量时淘汰最久未使用的键
// 键的有效期取 SetNX 的 expiration 与缓存 ttl 中较小者
type MemoryCache struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, time.Time]
	now func() time.Time
}

// NewMemoryCache maxSize 小于等于0使用默认上限，ttl 小于等于0与请求ID默认保留时长一致
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = defaultMemoryCacheSize
	}
	if ttl <= 0 {
		ttl = defaultReplayExpire
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, time.Time](maxSize, nil, ttl),
		now: time.Now,
	}
}

func (mc *MemoryCache) SetNX(_ context.Context, key string, _ string, expiration time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	if deadline, ok := mc.lru.Peek(key); ok && (deadline.IsZero() || now.Before(deadline)) {
		return false, nil
	}
	var deadline time.Time
	if expiration > 0 {
		deadline = now.Add(expiration)
	}
	mc.lru.Add(key, deadline)
	return true, nil
}

// Len 当前缓存的键数量，过期键由后台清理
func (mc *MemoryCache) Len() int {
	return mc.lru.Len()
}
