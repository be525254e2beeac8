// Package ratelimit 为每个直播平台提供访问频率限制功能
// 防止多个直播间并发轮询时对同一平台请求过密触发风控
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// PlatformRateLimiter 管理各个直播平台的访问频率限制
type PlatformRateLimiter struct {
	limiters map[string]*platformLimiter
	mu       sync.RWMutex
}

type platformLimiter struct {
	minInterval time.Duration
	lastAccess  time.Time
	mu          sync.Mutex
}

var globalRateLimiter = &PlatformRateLimiter{
	limiters: make(map[string]*platformLimiter),
}

// GetGlobalRateLimiter 获取全局速率限制器实例
func GetGlobalRateLimiter() *PlatformRateLimiter {
	return globalRateLimiter
}

// SetPlatformLimit 设置或更新指定平台的访问频率限制
// intervalSec <= 0 时移除该平台的限制
func (prl *PlatformRateLimiter) SetPlatformLimit(platform string, intervalSec int) {
	prl.mu.Lock()
	defer prl.mu.Unlock()
	if intervalSec <= 0 {
		delete(prl.limiters, platform)
		return
	}
	interval := time.Duration(intervalSec) * time.Second
	if limiter, exists := prl.limiters[platform]; exists {
		limiter.mu.Lock()
		limiter.minInterval = interval
		limiter.mu.Unlock()
		return
	}
	prl.limiters[platform] = &platformLimiter{
		minInterval: interval,
		// 零值时间，首次访问不会被限制
	}
}

// WaitForPlatformWithContext 等待直到允许访问指定平台，支持 context 取消
// 平台没有设置限制时立即返回 true；被取消时返回 false
// 等待期间不持有锁
func (prl *PlatformRateLimiter) WaitForPlatformWithContext(ctx context.Context, platform string) bool {
	prl.mu.RLock()
	limiter, exists := prl.limiters[platform]
	prl.mu.RUnlock()
	if !exists {
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		limiter.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(limiter.lastAccess)
		if elapsed >= limiter.minInterval {
			limiter.lastAccess = now
			limiter.mu.Unlock()
			return true
		}
		waitTime := limiter.minInterval - elapsed
		limiter.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
			// 循环回去重新检查
		}
	}
}

// GetAllPlatformLimits 获取所有平台的当前限制设置（秒）
func (prl *PlatformRateLimiter) GetAllPlatformLimits() map[string]int {
	prl.mu.RLock()
	defer prl.mu.RUnlock()
	limits := make(map[string]int, len(prl.limiters))
	for platform, limiter := range prl.limiters {
		limiter.mu.Lock()
		limits[platform] = int(limiter.minInterval.Seconds())
		limiter.mu.Unlock()
	}
	return limits
}
