package server

import "time"

// rateLimiter 固定窗口计数限流；只在单个读协程中使用，无需加锁
type rateLimiter struct {
	limit    int
	window   time.Duration
	start    time.Time
	count    int
	notified bool // 本窗口内是否已回执过限流
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{limit: limit, window: window}
}

// Allow 当前窗口内未超过上限时计数并放行
func (l *rateLimiter) Allow(now time.Time) bool {
	if now.Sub(l.start) >= l.window {
		l.start = now
		l.count = 0
		l.notified = false
	}
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}

// ShouldNotify 每个窗口只对第一次被限流的消息回执，其余静默丢弃
func (l *rateLimiter) ShouldNotify() bool {
	if l.notified {
		return false
	}
	l.notified = true
	return true
}
