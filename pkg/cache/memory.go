package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// item 进程内缓存项
type item struct {
	value      []byte
	expiration int64 // Unix纳秒时间戳，0表示永不过期
}

// expired 检查是否过期
func (it *item) expired() bool {
	if it.expiration == 0 {
		return false
	}
	return time.Now().UnixNano() > it.expiration
}

// memoryBackend 进程内回退缓存后端
// 读时惰性淘汰过期项，可选的定期清理仅为了控制内存占用
type memoryBackend struct {
	items map[string]*item
	mu    sync.RWMutex

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// NewMemoryBackend 创建进程内缓存后端
// cleanupInterval<=0 时不启动定期清理
func NewMemoryBackend(cleanupInterval time.Duration) Backend {
	b := &memoryBackend{
		items:           make(map[string]*item),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go b.cleanupLoop()
	}

	return b
}

// cleanupLoop 定期清理过期项
func (b *memoryBackend) cleanupLoop() {
	ticker := time.NewTicker(b.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.deleteExpired()
		case <-b.stopCleanup:
			return
		}
	}
}

// deleteExpired 删除所有过期项
func (b *memoryBackend) deleteExpired() {
	now := time.Now().UnixNano()

	b.mu.Lock()
	defer b.mu.Unlock()

	for key, it := range b.items {
		if it.expiration > 0 && now > it.expiration {
			delete(b.items, key)
		}
	}
}

// Name 后端名称
func (b *memoryBackend) Name() string {
	return "memory"
}

// Get 获取缓存，过期项惰性淘汰并按未命中处理
func (b *memoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	it, ok := b.items[key]
	b.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if it.expired() {
		b.mu.Lock()
		delete(b.items, key)
		b.mu.Unlock()
		return nil, nil
	}

	return it.value, nil
}

// Set 设置缓存，ttl=0 表示永不过期
func (b *memoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}

	b.mu.Lock()
	b.items[key] = &item{value: value, expiration: exp}
	b.mu.Unlock()

	return nil
}

// Del 删除缓存
func (b *memoryBackend) Del(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	for _, key := range keys {
		delete(b.items, key)
	}
	b.mu.Unlock()
	return nil
}

// DelPrefix 删除指定前缀的所有缓存
func (b *memoryBackend) DelPrefix(ctx context.Context, prefix string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for key := range b.items {
		if strings.HasPrefix(key, prefix) {
			delete(b.items, key)
			count++
		}
	}
	return count, nil
}

// TTL 获取剩余过期时间（秒）
func (b *memoryBackend) TTL(ctx context.Context, key string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	it, ok := b.items[key]
	if !ok {
		return TTLAbsent, nil
	}

	if it.expiration == 0 {
		return TTLNoExpire, nil
	}

	ttlNs := it.expiration - time.Now().UnixNano()
	if ttlNs <= 0 {
		delete(b.items, key)
		return TTLAbsent, nil
	}

	// 向上取整到秒
	return int((ttlNs + int64(time.Second) - 1) / int64(time.Second)), nil
}

// Close 停止清理协程
func (b *memoryBackend) Close() {
	if b.cleanupInterval > 0 {
		close(b.stopCleanup)
	}
}
