package danmaku

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// for test
var mkdir = func(path string) error {
	return os.MkdirAll(path, os.ModePerm)
}

// Writer 按行追加记录到 JSONL 文件
// 每条记录写入后立即 Sync，进程被杀最多丢一条
// 非并发安全，每个会话独占一个 Writer
type Writer struct {
	path string
	file *os.File
	enc  *json.Encoder
}

// NewWriter 打开（必要时创建）目标文件用于追加
func NewWriter(path string) (*Writer, error) {
	if err := mkdir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	enc := json.NewEncoder(file)
	// 弹幕内容里 <3 之类的字符要原样保留
	enc.SetEscapeHTML(false)
	return &Writer{
		path: path,
		file: file,
		enc:  enc,
	}, nil
}

func (w *Writer) Path() string {
	return w.path
}

// Write 追加一条记录并刷盘
func (w *Writer) Write(record *CanonicalRecord) error {
	if err := w.enc.Encode(record); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync output file: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.file.Close()
}
