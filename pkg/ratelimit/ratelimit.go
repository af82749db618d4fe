package ratelimit

import (
	"sync"
	"time"
)

// window 固定窗口计数器
type window struct {
	count   int
	resetAt time.Time
}

// Result 限流判定结果
type Result struct {
	Allowed           bool `json:"allowed"`
	RetryAfterSeconds int  `json:"retryAfterSeconds,omitempty"`
}

// Limiter 进程内固定窗口限流器
// 单实例进程启动时构建一次，由所有守卫共享引用
// 固定窗口在窗口边界处最多放行 2×limit 的突发，这是接受的近似行为
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// New 创建限流器
func New() *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow 判定 (scope, actor) 在当前窗口内是否放行
// windowSeconds 为窗口长度，limit 为窗口内允许的请求数
func (l *Limiter) Allow(scope, actor string, windowSeconds, limit int) Result {
	key := scope + ":" + actor
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		// 新窗口：重置计数
		l.windows[key] = &window{
			count:   1,
			resetAt: now.Add(time.Duration(windowSeconds) * time.Second),
		}
		return Result{Allowed: true}
	}

	if w.count < limit {
		w.count++
		return Result{Allowed: true}
	}

	retryAfter := int((w.resetAt.Sub(now) + time.Second - 1) / time.Second)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Result{Allowed: false, RetryAfterSeconds: retryAfter}
}

// Reset 清空所有窗口
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.windows = make(map[string]*window)
	l.mu.Unlock()
}
