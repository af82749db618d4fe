package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/myltx/nestbase-go/pkg/config"
	"github.com/myltx/nestbase-go/pkg/database"
	"github.com/myltx/nestbase-go/pkg/errors"
	"github.com/myltx/nestbase-go/pkg/logger"
	"go.uber.org/zap"
)

// TTL 返回值约定，与 Redis TTL 命令一致
const (
	TTLAbsent   = -2 // key 不存在
	TTLNoExpire = -1 // 无过期时间
)

// remoteTimeout 单次远程缓存操作的超时上限
const remoteTimeout = 2 * time.Second

// Backend 缓存后端能力
// 远程（Redis）与进程内回退两种实现语义一致
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelPrefix(ctx context.Context, prefix string) (int, error)
	TTL(ctx context.Context, key string) (int, error)
	Name() string
}

// Cache 缓存门面
// 启动时一次性选定后端，远程错误降级为缓存未命中，绝不向业务上抛
type Cache struct {
	backend  Backend
	prefix   string
	degraded bool
}

// New 创建缓存实例
// 优先连接 Redis，连接失败或被配置禁用时永久回退到进程内存储
func New(redisCfg *config.RedisConfig, cacheCfg *config.CacheConfig) *Cache {
	prefix := ""
	if cacheCfg != nil {
		prefix = cacheCfg.Prefix
	}

	if err := database.InitRedis(redisCfg); err != nil {
		logger.Warn("远程缓存不可用，回退到进程内缓存",
			zap.String("reason", errors.ReasonCacheDegraded),
			zap.Error(err),
		)
		return &Cache{
			backend:  NewMemoryBackend(5 * time.Minute),
			prefix:   prefix,
			degraded: true,
		}
	}

	logger.Info("远程缓存已启用", zap.String("addr", redisCfg.Addr()))
	return &Cache{
		backend: NewRedisBackend(database.GetRedis()),
		prefix:  prefix,
	}
}

// NewWithBackend 使用指定后端创建缓存实例
func NewWithBackend(backend Backend, prefix string) *Cache {
	return &Cache{backend: backend, prefix: prefix}
}

// Degraded 是否处于回退模式
func (c *Cache) Degraded() bool {
	return c.degraded
}

// key 生成带前缀的key
func (c *Cache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get 获取缓存，未命中或后端出错均返回 nil
func (c *Cache) Get(ctx context.Context, key string) []byte {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	data, err := c.backend.Get(ctx, c.key(key))
	if err != nil {
		logger.Warn("缓存读取失败，按未命中处理",
			zap.String("key", key),
			zap.String("backend", c.backend.Name()),
			zap.Error(err),
		)
		return nil
	}
	return data
}

// Set 设置缓存，ttlSeconds<=0 表示永不过期；写入失败仅记录日志
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	var ttl time.Duration
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}

	if err := c.backend.Set(ctx, c.key(key), value, ttl); err != nil {
		logger.Warn("缓存写入失败",
			zap.String("key", key),
			zap.String("backend", c.backend.Name()),
			zap.Error(err),
		)
	}
}

// GetJSON 获取缓存并反序列化，解析失败视为未命中
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	data := c.Get(ctx, key)
	if data == nil {
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		logger.Warn("缓存JSON解析失败，按未命中处理",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	return true
}

// SetJSON 序列化并设置缓存
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttlSeconds int) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("缓存JSON序列化失败", zap.String("key", key), zap.Error(err))
		return
	}
	c.Set(ctx, key, data, ttlSeconds)
}

// Del 删除缓存
func (c *Cache) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.key(k)
	}

	if err := c.backend.Del(ctx, fullKeys...); err != nil {
		logger.Warn("缓存删除失败",
			zap.Strings("keys", keys),
			zap.String("backend", c.backend.Name()),
			zap.Error(err),
		)
	}
}

// DelPrefix 删除指定前缀的所有缓存，返回删除数量
func (c *Cache) DelPrefix(ctx context.Context, prefix string) int {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	count, err := c.backend.DelPrefix(ctx, c.key(prefix))
	if err != nil {
		logger.Warn("缓存前缀删除失败",
			zap.String("prefix", prefix),
			zap.String("backend", c.backend.Name()),
			zap.Error(err),
		)
		return 0
	}
	return count
}

// TTL 获取剩余过期时间（秒），-2 表示不存在，-1 表示无过期时间
func (c *Cache) TTL(ctx context.Context, key string) int {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	ttl, err := c.backend.TTL(ctx, c.key(key))
	if err != nil {
		logger.Warn("缓存TTL查询失败", zap.String("key", key), zap.Error(err))
		return TTLAbsent
	}
	return ttl
}
