// Package webcast 解析抖音直播推送流的二进制帧
// 线上协议为 protobuf，这里直接基于 protowire 手工编解码，不生成代码：
// 只取需要的字段，未知字段一律跳过，协议升级新增字段不影响解析。
package webcast

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedFrame 表示帧的外层结构无法解析
var ErrMalformedFrame = errors.New("webcast: malformed push frame")

// PushFrame 推送流的外层帧，上行下行共用
type PushFrame struct {
	SeqID           uint64
	LogID           uint64
	Service         uint64
	Method          uint64
	PayloadEncoding string
	PayloadType     string
	Payload         []byte
}

// PushFrame 字段编号
const (
	frameFieldSeqID           = 1
	frameFieldLogID           = 2
	frameFieldService         = 3
	frameFieldMethod          = 4
	frameFieldHeaders         = 5
	frameFieldPayloadEncoding = 6
	frameFieldPayloadType     = 7
	frameFieldPayload         = 8
)

func parsePushFrame(b []byte) (*PushFrame, error) {
	frame := &PushFrame{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case frameFieldSeqID:
				frame.SeqID = v
			case frameFieldLogID:
				frame.LogID = v
			case frameFieldService:
				frame.Service = v
			case frameFieldMethod:
				frame.Method = v
			}
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case frameFieldPayloadEncoding:
				frame.PayloadEncoding = string(v)
			case frameFieldPayloadType:
				frame.PayloadType = string(v)
			case frameFieldPayload:
				frame.Payload = v
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return frame, nil
}

// Marshal 序列化为上行帧字节
func (f *PushFrame) Marshal() []byte {
	var b []byte
	if f.SeqID != 0 {
		b = protowire.AppendTag(b, frameFieldSeqID, protowire.VarintType)
		b = protowire.AppendVarint(b, f.SeqID)
	}
	if f.LogID != 0 {
		b = protowire.AppendTag(b, frameFieldLogID, protowire.VarintType)
		b = protowire.AppendVarint(b, f.LogID)
	}
	if f.Service != 0 {
		b = protowire.AppendTag(b, frameFieldService, protowire.VarintType)
		b = protowire.AppendVarint(b, f.Service)
	}
	if f.Method != 0 {
		b = protowire.AppendTag(b, frameFieldMethod, protowire.VarintType)
		b = protowire.AppendVarint(b, f.Method)
	}
	if f.PayloadEncoding != "" {
		b = protowire.AppendTag(b, frameFieldPayloadEncoding, protowire.BytesType)
		b = protowire.AppendString(b, f.PayloadEncoding)
	}
	if f.PayloadType != "" {
		b = protowire.AppendTag(b, frameFieldPayloadType, protowire.BytesType)
		b = protowire.AppendString(b, f.PayloadType)
	}
	if len(f.Payload) > 0 {
		b = protowire.AppendTag(b, frameFieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Payload)
	}
	return b
}

// HeartbeatFrame 心跳上行帧
func HeartbeatFrame() []byte {
	return (&PushFrame{PayloadType: "hb"}).Marshal()
}

// AckFrame 对 needAck 响应的确认帧
// payload 为下行 Response 的 internalExt 原文
func AckFrame(logID uint64, internalExt string) []byte {
	return (&PushFrame{
		LogID:       logID,
		PayloadType: "ack",
		Payload:     []byte(internalExt),
	}).Marshal()
}
