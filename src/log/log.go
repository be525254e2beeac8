package log

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danmu-go/danmu-go/src/configs"
	"github.com/danmu-go/danmu-go/src/consts"
	"github.com/danmu-go/danmu-go/src/interfaces"
	dgsentry "github.com/danmu-go/danmu-go/src/pkg/sentry"
)

var (
	stopDebugWatcher context.CancelFunc
	watcherMu        sync.Mutex
)

func New(ctx context.Context) *interfaces.Logger {
	cfg := configs.GetCurrentConfig()
	if cfg == nil {
		cfg = configs.NewConfig()
	}
	logLevel := logrus.InfoLevel
	if cfg.Debug {
		logLevel = logrus.DebugLevel
	}
	writers := []io.Writer{os.Stderr}
	outputFolder := cfg.Log.OutPutFolder
	if err := os.MkdirAll(outputFolder, os.ModePerm); err != nil {
		log.Fatalf("err: \"%s\", Failed to create log output folder: %s", err, outputFolder)
	}
	if cfg.Log.SaveLastLog {
		// 启动时清理之前的所有滚动日志，重新开始写日志
		purgePattern := filepath.Join(outputFolder, consts.AppName+"-*.log")
		matches, _ := filepath.Glob(purgePattern)
		for _, f := range matches {
			_ = os.Remove(f)
		}
		// 按天滚动写入日志
		rot := newDailyRotatingWriter(outputFolder, consts.AppName, cfg.Log.RotateDays)
		writers = append(writers, rot)
	}

	logrus.SetOutput(io.MultiWriter(writers...))
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if cfg.Debug {
		logrus.SetReportCaller(true)
	}

	// 全局唯一 logger 使用 logrus 标准 logger
	logrus.SetLevel(logLevel)

	// 动态监听 Debug 变化，实时调整日志级别与是否打印调用方
	watcherMu.Lock()
	if stopDebugWatcher != nil {
		stopDebugWatcher()
	}
	watcherCtx, cancel := context.WithCancel(ctx)
	stopDebugWatcher = cancel
	watcherMu.Unlock()

	dgsentry.GoWithContext(watcherCtx, func(ctx context.Context) {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		prev := cfg.Debug
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := configs.IsDebug()
				if now == prev {
					continue
				}
				if now {
					logrus.SetLevel(logrus.DebugLevel)
					logrus.SetReportCaller(true)
				} else {
					logrus.SetLevel(logrus.InfoLevel)
					logrus.SetReportCaller(false)
				}
				prev = now
			}
		}
	})

	return &interfaces.Logger{Logger: logrus.StandardLogger()}
}

// dailyRotatingWriter 按“天”切分日志文件，文件名形如：<base>-YYYY-MM-DD.log
// 可选保留最近 N 天（retentionDays<=0 时不清理）。
type dailyRotatingWriter struct {
	dir           string
	base          string
	retentionDays int

	mu     sync.Mutex
	curDay string
	file   *os.File
}

func newDailyRotatingWriter(dir, base string, retentionDays int) *dailyRotatingWriter {
	w := &dailyRotatingWriter{dir: dir, base: base, retentionDays: retentionDays}
	_ = w.rotateIfNeededLocked(time.Now())
	return w
}

func (w *dailyRotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotateIfNeededLocked(time.Now()); err != nil {
		return 0, err
	}
	if w.file == nil {
		return 0, io.ErrClosedPipe
	}
	return w.file.Write(p)
}

func (w *dailyRotatingWriter) rotateIfNeededLocked(now time.Time) error {
	day := now.Format("2006-01-02")
	if w.file != nil && day == w.curDay {
		return nil
	}
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	name := w.filenameForDay(day)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.curDay = day
	// 清理过期文件
	w.cleanupLocked(now)
	return nil
}

func (w *dailyRotatingWriter) filenameForDay(day string) string {
	return filepath.Join(w.dir, w.base+"-"+day+".log")
}

func (w *dailyRotatingWriter) cleanupLocked(now time.Time) {
	if w.retentionDays <= 0 {
		return
	}
	cutoff := now.AddDate(0, 0, -w.retentionDays)
	pattern := filepath.Join(w.dir, w.base+"-*.log")
	files, _ := filepath.Glob(pattern)
	for _, f := range files {
		base := filepath.Base(f)
		// 期望格式：<base>-YYYY-MM-DD.log
		if !strings.HasPrefix(base, w.base+"-") || !strings.HasSuffix(base, ".log") {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(base, w.base+"-"), ".log")
		if t, err := time.Parse("2006-01-02", dateStr); err == nil {
			if t.Before(cutoff) {
				_ = os.Remove(f)
			}
		}
	}
}

// GetLogger 返回全局唯一的 logrus Logger。
// 便于在代码任意位置获取 Logger，而无需通过 instance 传递。
func GetLogger() *logrus.Logger {
	return logrus.StandardLogger()
}

// WithFields 是对全局 Logger 的便捷封装，返回带字段的 Entry。
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logrus.StandardLogger().WithFields(fields)
}
