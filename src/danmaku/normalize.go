package danmaku

import (
	"fmt"
	"time"

	"github.com/danmu-go/danmu-go/src/configs"
	"github.com/danmu-go/danmu-go/src/pkg/webcast"
)

// CanonicalRecord 输出文件中的一行，字段顺序固定
type CanonicalRecord struct {
	EventTsMs    int64  `json:"event_ts_ms"`
	EventISO     string `json:"event_iso"`
	ServerNowMs  int64  `json:"server_now_ms"`
	ServerNowISO string `json:"server_now_iso"`
	RecvISO      string `json:"recv_iso"`
	UserID       int64  `json:"user_id"`
	UserName     string `json:"user_name"`
	Content      string `json:"content"`
}

const isoLayout = "2006-01-02T15:04:05.000-07:00"

// normalizeTsMs 把未知量纲的时间值统一到毫秒
// 服务端在不同消息里混用 秒/毫秒/微秒/纳秒，按位数区分
func normalizeTsMs(v int64) int64 {
	if v <= 0 {
		return 0
	}
	switch {
	case v < 1e10: // 秒
		return v * 1000
	case v < 1e13: // 毫秒
		return v
	case v < 1e16: // 微秒
		return v / 1000
	default: // 纳秒
		return v / 1e6
	}
}

func formatISO(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format(isoLayout)
}

// Normalize 把解码事件转换为待落盘记录
// 纯函数：同样输入必然产出同样记录
// 返回 nil 表示该事件不产生记录（控制事件、低于阈值的礼物）
func Normalize(ev webcast.Event, resolved configs.ResolvedConfig, serverNow int64, recv time.Time) *CanonicalRecord {
	var (
		eventRaw int64
		userID   int64
		userName string
		content  string
	)

	switch e := ev.(type) {
	case webcast.ChatMessage:
		eventRaw = e.EventTime
		userID = e.UserID
		userName = e.UserName
		content = e.Content
	case webcast.GiftMessage:
		// 礼物按总价值过滤，弹幕从不过滤
		if e.GiftValue*e.ComboCount < int64(resolved.GiftValueThreshold) {
			return nil
		}
		eventRaw = e.EventTime
		userID = e.UserID
		userName = e.UserName
		content = fmt.Sprintf("%s x%d(%d钻)", e.GiftName, e.ComboCount, e.GiftValue)
	default:
		// 控制事件只影响会话状态，不产生记录
		return nil
	}

	loc := resolved.Location()
	recvMs := recv.UnixMilli()
	serverNowMs := normalizeTsMs(serverNow)

	// 事件时间缺失时退回服务端时钟，再退回本地接收时间
	eventMs := normalizeTsMs(eventRaw)
	if eventMs == 0 {
		eventMs = serverNowMs
	}
	if eventMs == 0 {
		eventMs = recvMs
	}
	// 服务端时钟缺失时用解析出的事件时间兜底
	if serverNowMs == 0 {
		serverNowMs = eventMs
	}

	return &CanonicalRecord{
		EventTsMs:    eventMs,
		EventISO:     formatISO(eventMs, loc),
		ServerNowMs:  serverNowMs,
		ServerNowISO: formatISO(serverNowMs, loc),
		RecvISO:      formatISO(recvMs, loc),
		UserID:       userID,
		UserName:     userName,
		Content:      content,
	}
}
