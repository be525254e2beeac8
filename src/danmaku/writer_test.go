package danmaku

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterAppendAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "抖音", "主播", "out.jsonl")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(&CanonicalRecord{EventTsMs: 1, UserName: "a", Content: "第一条"}))
	require.NoError(t, w.Write(&CanonicalRecord{EventTsMs: 2, UserName: "b", Content: "第二条"}))
	require.NoError(t, w.Close())

	// 重开后继续追加，不能截断旧内容
	w, err = NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(&CanonicalRecord{EventTsMs: 3, UserName: "c", Content: "<3"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	// 字段顺序固定，HTML 字符不转义
	assert.True(t, strings.HasPrefix(lines[0], `{"event_ts_ms":1,"event_iso":""`), lines[0])
	assert.Contains(t, lines[2], `"<3"`)

	var record CanonicalRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &record))
	assert.EqualValues(t, 2, record.EventTsMs)
	assert.Equal(t, "第二条", record.Content)
}

func TestNewWriterMkdirFailure(t *testing.T) {
	origMkdir := mkdir
	mkdir = func(string) error { return errors.New("disk full") }
	defer func() { mkdir = origMkdir }()

	_, err := NewWriter(filepath.Join(t.TempDir(), "sub", "out.jsonl"))
	assert.Error(t, err)
}
