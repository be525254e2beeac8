package danmaku

import "errors"

var (
	ErrDanmakuExist    = errors.New("danmaku collector is exist")
	ErrDanmakuNotExist = errors.New("danmaku collector is not exist")
)

// 会话内部的结束原因
var (
	// errSessionEnd 直播已结束（宽限期耗尽或状态复核确认下播）
	errSessionEnd = errors.New("live session ended")
	// errWriteFatal 落盘失败，会话必须终止
	errWriteFatal = errors.New("output write failed")
	// errConnLost 连接断开或假死，可以重连
	errConnLost = errors.New("connection lost")
	// errStopped 外部要求停止
	errStopped = errors.New("collector stopped")
)
