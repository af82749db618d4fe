package database

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/myltx/nestbase-go/pkg/config"
	"github.com/redis/go-redis/v9"
)

// ErrRedisDisabled 配置显式关闭了 Redis
var ErrRedisDisabled = errors.New("redis disabled by configuration")

var (
	redisOnce   sync.Once
	redisClient *redis.Client
	miniRedis   *miniredis.Miniredis // 内存模式的 Redis
)

// InitRedis 初始化Redis连接
// mode=disabled 时返回 ErrRedisDisabled，调用方据此选择进程内回退存储
func InitRedis(cfg *config.RedisConfig) error {
	var err error
	redisOnce.Do(func() {
		switch cfg.Mode {
		case "disabled":
			err = ErrRedisDisabled
		case "memory":
			// 使用内存模式（miniredis）
			miniRedis, err = miniredis.Run()
			if err != nil {
				return
			}
			redisClient = redis.NewClient(&redis.Options{
				Addr: miniRedis.Addr(),
			})
		default:
			// 使用外部 Redis 服务
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Addr(),
				Password: cfg.Password,
				DB:       cfg.DB,
				PoolSize: cfg.PoolSize,
			})

			// 测试连接
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_, err = redisClient.Ping(ctx).Result()
			if err != nil {
				redisClient = nil
			}
		}
	})
	return err
}

// GetRedis 获取Redis客户端
func GetRedis() *redis.Client {
	if redisClient == nil {
		panic("redis not initialized, call InitRedis first")
	}
	return redisClient
}

// RedisAvailable Redis是否可用
func RedisAvailable() bool {
	return redisClient != nil
}

// CloseRedis 关闭Redis连接
func CloseRedis() error {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			return err
		}
	}
	if miniRedis != nil {
		miniRedis.Close()
	}
	return nil
}
