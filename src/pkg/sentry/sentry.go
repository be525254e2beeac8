// Package sentry 提供 Sentry 错误监控的封装
// DSN 为空时所有操作均为 no-op，不影响程序运行
package sentry

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

var (
	initialized bool
	initMu      sync.RWMutex
)

// Init 初始化 Sentry SDK，dsn 留空则禁用
func Init(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
	if err != nil {
		return err
	}
	initMu.Lock()
	initialized = true
	initMu.Unlock()
	return nil
}

func IsInitialized() bool {
	initMu.RLock()
	defer initMu.RUnlock()
	return initialized
}

// Flush 刷新所有待发送事件（程序退出前调用）
func Flush(timeout time.Duration) {
	if !IsInitialized() {
		return
	}
	sentry.Flush(timeout)
}

// Recover 用于 goroutine 的 panic 恢复
// 注意：必须先调用 recover()，再检查 Sentry 状态，否则 panic 不会被捕获
func Recover() {
	err := recover()
	if err == nil {
		return
	}
	if IsInitialized() {
		if hub := sentry.CurrentHub(); hub != nil {
			hub.Recover(err)
		}
	}
	// 不重新 panic，让 goroutine 优雅退出
}

// RecoverWithContext 同 Recover，带 context 版本
func RecoverWithContext(ctx context.Context) {
	err := recover()
	if err == nil {
		return
	}
	if IsInitialized() {
		hub := sentry.GetHubFromContext(ctx)
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		if hub != nil {
			hub.RecoverWithContext(ctx, err)
		}
	}
}

// CaptureException 捕获异常
func CaptureException(err error) {
	if !IsInitialized() || err == nil {
		return
	}
	sentry.CaptureException(err)
}

// Go 启动一个新的 goroutine 并自动添加 panic 恢复
func Go(f func()) {
	go func() {
		defer Recover()
		f()
	}()
}

// GoWithContext 启动一个新的 goroutine 并自动添加 panic 恢复（带 Context）
func GoWithContext(ctx context.Context, f func(context.Context)) {
	go func() {
		defer RecoverWithContext(ctx)
		f(ctx)
	}()
}
