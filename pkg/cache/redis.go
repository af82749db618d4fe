package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisBackend Redis缓存后端
type redisBackend struct {
	client *redis.Client
}

// NewRedisBackend 创建Redis缓存后端
func NewRedisBackend(client *redis.Client) Backend {
	return &redisBackend{client: client}
}

// Name 后端名称
func (b *redisBackend) Name() string {
	return "redis"
}

// Get 获取缓存，key 不存在时返回 nil, nil
func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Set 设置缓存，ttl=0 表示永不过期
func (b *redisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

// Del 删除缓存
func (b *redisBackend) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.client.Del(ctx, keys...).Err()
}

// DelPrefix 按前缀删除缓存（SCAN + DEL，避免阻塞）
func (b *redisBackend) DelPrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)

	for {
		keys, next, err := b.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return deleted, err
		}

		if len(keys) > 0 {
			if err := b.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, err
			}
			deleted += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}

// TTL 获取剩余过期时间（秒）
func (b *redisBackend) TTL(ctx context.Context, key string) (int, error) {
	d, err := b.client.TTL(ctx, key).Result()
	if err != nil {
		return TTLAbsent, err
	}

	// go-redis 将 Redis 的 -1/-2 表示为负时长
	switch {
	case d == -2*time.Second || d == -2*time.Nanosecond:
		return TTLAbsent, nil
	case d < 0:
		return TTLNoExpire, nil
	}

	return int((d + time.Second - 1) / time.Second), nil
}
