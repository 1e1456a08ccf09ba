package utils

import (
	"sync"
	"time"
)

// TokenBucket 进程内令牌桶，按请求时惰性补充令牌
type TokenBucket struct {
	mu       sync.Mutex
	capacity int64   // 桶容量（突发上限）
	rate     int64   // 每秒补充的令牌数
	tokens   float64 // 当前令牌数
	lastFill time.Time
}

// NewTokenBucket 创建令牌桶
// capacity: 突发流量容量；rate: 每秒允许的请求数 (QPS)
func NewTokenBucket(capacity, rate int64) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if rate <= 0 {
		rate = 1
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     rate,
		tokens:   float64(capacity),
		lastFill: time.Now(),
	}
}

// refillLocked 按流逝时间补充令牌，调用方持有锁
func (tb *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(tb.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * float64(tb.rate)
	if tb.tokens > float64(tb.capacity) {
		tb.tokens = float64(tb.capacity)
	}
	tb.lastFill = now
}

// AllowN 尝试立即取走 n 个令牌
func (tb *TokenBucket) AllowN(n int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(time.Now())
	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// Allow 尝试立即取走一个令牌
func (tb *TokenBucket) Allow() bool {
	return tb.AllowN(1)
}

// WaitN 在 timeout 内等待 n 个令牌，拿到返回 true
// 采用短轮询而不是精确定时，避免为每个请求维护等待队列。
func (tb *TokenBucket) WaitN(n int64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if tb.AllowN(n) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
