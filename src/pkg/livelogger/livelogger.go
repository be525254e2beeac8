package livelogger

import (
	"bytes"
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	applog "github.com/danmu-go/danmu-go/src/log"
)

const (
	// DefaultBufferSize 默认日志缓冲区大小（64KB）
	DefaultBufferSize = 64 * 1024
)

// liveLoggerKey 是用于在 context 中存储 LiveLogger 引用的 key
type liveLoggerKey struct{}

var hookOnce sync.Once

// LiveLogHook 是一个 logrus Hook，负责将日志写入对应直播间的缓冲区
type LiveLogHook struct{}

func (h *LiveLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 在日志触发时调用
func (h *LiveLogHook) Fire(entry *logrus.Entry) error {
	if entry.Context == nil {
		return nil
	}

	logger, ok := entry.Context.Value(liveLoggerKey{}).(*LiveLogger)
	if !ok || logger == nil {
		return nil
	}

	formatted, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return nil // 忽略格式化错误
	}

	logger.writeToBuffer(formatted)
	return nil
}

func ensureHookRegistered() {
	hookOnce.Do(func() {
		applog.GetLogger().AddHook(&LiveLogHook{})
	})
}

// ringBuffer 是一个固定大小的环形缓冲区
type ringBuffer struct {
	buf      []byte
	size     int
	writePos int
	full     bool
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		buf:  make([]byte, size),
		size: size,
	}
}

func (rb *ringBuffer) Write(p []byte) (n int, err error) {
	n = len(p)
	if n == 0 {
		return 0, nil
	}

	// 如果写入的数据比缓冲区还大，只保留最后 size 字节
	if n >= rb.size {
		copy(rb.buf, p[n-rb.size:])
		rb.writePos = 0
		rb.full = true
		return n, nil
	}

	remaining := rb.size - rb.writePos
	if n <= remaining {
		copy(rb.buf[rb.writePos:], p)
		rb.writePos += n
		if rb.writePos == rb.size {
			rb.writePos = 0
			rb.full = true
		}
	} else {
		// 需要绕回
		copy(rb.buf[rb.writePos:], p[:remaining])
		copy(rb.buf, p[remaining:])
		rb.writePos = n - remaining
		rb.full = true
	}

	return n, nil
}

func (rb *ringBuffer) String() string {
	if !rb.full {
		return string(rb.buf[:rb.writePos])
	}
	// 缓冲区已满，需要从 writePos 开始读取
	var result bytes.Buffer
	result.Write(rb.buf[rb.writePos:])
	result.Write(rb.buf[:rb.writePos])
	return result.String()
}

func (rb *ringBuffer) Bytes() []byte {
	if !rb.full {
		return rb.buf[:rb.writePos]
	}
	result := make([]byte, rb.size)
	copy(result, rb.buf[rb.writePos:])
	copy(result[rb.size-rb.writePos:], rb.buf[:rb.writePos])
	return result
}

// LiveLogger 是每个直播间专属的日志记录器
// 它嵌入 logrus.Entry，自动继承所有日志方法
// 通过 context 机制，Hook 可以识别出日志属于哪个 LiveLogger
type LiveLogger struct {
	*logrus.Entry
	mu     sync.RWMutex
	buffer *ringBuffer
}

// New 创建一个新的 LiveLogger
// bufferSize: 缓冲区大小（字节），0 或负数使用默认值
// fields: 每条日志都会附带的字段（如 host, room）
func New(bufferSize int, fields logrus.Fields) *LiveLogger {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	logger := &LiveLogger{
		buffer: newRingBuffer(bufferSize),
	}

	// 创建带有 LiveLogger 引用的 context
	// 这样 Hook 就能通过 context 找到对应的 LiveLogger
	ctx := context.WithValue(context.Background(), liveLoggerKey{}, logger)

	// 先设置 context，再设置 fields
	// WithField/WithError 等方法会保留 context
	logger.Entry = applog.GetLogger().WithContext(ctx).WithFields(fields)

	ensureHookRegistered()

	return logger
}

func (l *LiveLogger) writeToBuffer(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffer.Write(data)
}

// GetLogs 获取缓冲区中的所有日志文本
func (l *LiveLogger) GetLogs() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buffer.String()
}

// GetLogsBytes 获取缓冲区中的所有日志（字节形式）
func (l *LiveLogger) GetLogsBytes() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buffer.Bytes()
}
