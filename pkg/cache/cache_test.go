package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newTestBackends 返回两种后端，语义必须一致
func newTestBackends(t *testing.T) map[string]Backend {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("启动 miniredis 失败: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(0),
		"redis":  NewRedisBackend(client),
	}
}

func TestBackendSetGet(t *testing.T) {
	ctx := context.Background()
	for name, b := range newTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.Set(ctx, "k", []byte("v"), 0); err != nil {
				t.Fatalf("Set 失败: %v", err)
			}

			got, err := b.Get(ctx, "k")
			if err != nil {
				t.Fatalf("Get 失败: %v", err)
			}
			if string(got) != "v" {
				t.Fatalf("期望 v，实际 %q", got)
			}

			missing, err := b.Get(ctx, "absent")
			if err != nil {
				t.Fatalf("Get 失败: %v", err)
			}
			if missing != nil {
				t.Fatalf("不存在的 key 应返回 nil，实际 %q", missing)
			}
		})
	}
}

func TestBackendTTLSemantics(t *testing.T) {
	ctx := context.Background()
	for name, b := range newTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			ttl, err := b.TTL(ctx, "absent")
			if err != nil || ttl != TTLAbsent {
				t.Fatalf("不存在的 key TTL 应为 -2，实际 %d (err=%v)", ttl, err)
			}

			b.Set(ctx, "forever", []byte("v"), 0)
			ttl, err = b.TTL(ctx, "forever")
			if err != nil || ttl != TTLNoExpire {
				t.Fatalf("无过期时间的 key TTL 应为 -1，实际 %d (err=%v)", ttl, err)
			}

			b.Set(ctx, "ephemeral", []byte("v"), 60*time.Second)
			ttl, err = b.TTL(ctx, "ephemeral")
			if err != nil || ttl <= 0 || ttl > 60 {
				t.Fatalf("期望 0<ttl<=60，实际 %d (err=%v)", ttl, err)
			}
		})
	}
}

func TestMemoryBackendLazyExpiry(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)

	b.Set(ctx, "k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	got, err := b.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if got != nil {
		t.Fatalf("过期的 key 应按未命中处理，实际 %q", got)
	}

	// 惰性淘汰后条目应已被移除
	if ttl, _ := b.TTL(ctx, "k"); ttl != TTLAbsent {
		t.Fatalf("过期的 key TTL 应为 -2，实际 %d", ttl)
	}
}

func TestBackendDelPrefix(t *testing.T) {
	ctx := context.Background()
	for name, b := range newTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			b.Set(ctx, "menu:routes:ADMIN", []byte("1"), 0)
			b.Set(ctx, "menu:routes:USER", []byte("2"), 0)
			b.Set(ctx, "permissions:42", []byte("3"), 0)

			count, err := b.DelPrefix(ctx, "menu:routes:")
			if err != nil {
				t.Fatalf("DelPrefix 失败: %v", err)
			}
			if count != 2 {
				t.Fatalf("期望删除 2 个，实际 %d", count)
			}

			if got, _ := b.Get(ctx, "menu:routes:ADMIN"); got != nil {
				t.Fatal("前缀匹配的 key 应被删除")
			}
			if got, _ := b.Get(ctx, "permissions:42"); got == nil {
				t.Fatal("前缀不匹配的 key 不应被删除")
			}
		})
	}
}

func TestCacheJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewWithBackend(NewMemoryBackend(0), "")

	type payload struct {
		Home   string   `json:"home"`
		Routes []string `json:"routes"`
	}

	c.SetJSON(ctx, "k", payload{Home: "/home", Routes: []string{"a", "b"}}, 60)

	var got payload
	if !c.GetJSON(ctx, "k", &got) {
		t.Fatal("期望缓存命中")
	}
	if got.Home != "/home" || len(got.Routes) != 2 {
		t.Fatalf("反序列化结果不符: %+v", got)
	}
}

func TestCacheJSONDecodeFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	c := NewWithBackend(NewMemoryBackend(0), "")

	c.Set(ctx, "broken", []byte("{not-json"), 0)

	var dest map[string]string
	if c.GetJSON(ctx, "broken", &dest) {
		t.Fatal("JSON 解析失败应按未命中处理")
	}
}

func TestCachePrefix(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)
	c := NewWithBackend(backend, "authz")

	c.Set(ctx, "k", []byte("v"), 0)

	got, _ := backend.Get(ctx, "authz:k")
	if string(got) != "v" {
		t.Fatalf("期望带前缀存储，实际 %q", got)
	}
}

// newDeadRedisCache 返回后端已不可达的缓存实例
func newDeadRedisCache(t *testing.T) *Cache {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("启动 miniredis 失败: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	// 先关掉服务端再使用客户端，模拟运行期远程缓存故障
	mr.Close()
	return NewWithBackend(NewRedisBackend(client), "")
}

func TestCacheRemoteFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	c := newDeadRedisCache(t)

	// 全部操作只记日志，读取按未命中处理
	c.Set(ctx, "k", []byte("v"), 60)
	if got := c.Get(ctx, "k"); got != nil {
		t.Fatalf("后端故障时读取应返回 nil，实际 %q", got)
	}

	var dest map[string]string
	if c.GetJSON(ctx, "k", &dest) {
		t.Fatal("后端故障时 GetJSON 应按未命中处理")
	}

	c.Del(ctx, "k")
	if n := c.DelPrefix(ctx, "menu:routes:"); n != 0 {
		t.Fatalf("后端故障时 DelPrefix 应返回 0，实际 %d", n)
	}
	if ttl := c.TTL(ctx, "k"); ttl != TTLAbsent {
		t.Fatalf("后端故障时 TTL 应按不存在处理，实际 %d", ttl)
	}
}
