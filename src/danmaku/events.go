package danmaku

import "github.com/danmu-go/danmu-go/src/pkg/events"

const (
	// DanmakuStart 采集会话开始
	DanmakuStart events.EventType = "DanmakuStart"
	// DanmakuStop 采集会话结束（含自然结束与外部关闭）
	DanmakuStop events.EventType = "DanmakuStop"
)
