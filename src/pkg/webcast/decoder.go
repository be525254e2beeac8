package webcast

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// FrameMeta 一帧解码后的元信息
type FrameMeta struct {
	LogID       uint64
	ServerNow   int64 // 服务端时钟原始值
	NeedAck     bool
	Ack         []byte // NeedAck 时预先构造好的确认帧
	Cursor      string
	InternalExt string
}

// Decoder 把下行帧翻译为领域事件
// 单条消息解析失败只计数跳过，未知 method 同样只计数，不中断流
type Decoder struct {
	logger logrus.FieldLogger

	malformedMessages atomic.Uint64
	unknownMethods    atomic.Uint64
}

// Stats 解码器运行计数
type Stats struct {
	MalformedMessages uint64 `json:"malformed_messages"`
	UnknownMethods    uint64 `json:"unknown_methods"`
}

func NewDecoder(logger logrus.FieldLogger) *Decoder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Decoder{logger: logger}
}

func (d *Decoder) Stats() Stats {
	return Stats{
		MalformedMessages: d.malformedMessages.Load(),
		UnknownMethods:    d.unknownMethods.Load(),
	}
}

var gzipMagic = []byte{0x1f, 0x8b}

func maybeGunzip(encoding string, payload []byte) ([]byte, error) {
	if encoding != "gzip" && !bytes.HasPrefix(payload, gzipMagic) {
		return payload, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gunzip payload: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gunzip payload: %w", err)
	}
	return out, nil
}

// DecodeFrame 解析一个下行二进制帧
// 返回事件列表（保持帧内顺序）与帧元信息
// 外层帧损坏时返回错误，单条消息损坏不影响其余消息
func (d *Decoder) DecodeFrame(data []byte) ([]Event, *FrameMeta, error) {
	frame, err := parsePushFrame(data)
	if err != nil {
		return nil, nil, err
	}
	payload, err := maybeGunzip(frame.PayloadEncoding, frame.Payload)
	if err != nil {
		return nil, nil, err
	}
	resp, err := parseResponse(payload)
	if err != nil {
		return nil, nil, err
	}

	meta := &FrameMeta{
		LogID:       frame.LogID,
		ServerNow:   int64(resp.Now),
		NeedAck:     resp.NeedAck,
		Cursor:      resp.Cursor,
		InternalExt: resp.InternalExt,
	}
	if resp.NeedAck {
		meta.Ack = AckFrame(frame.LogID, resp.InternalExt)
	}

	events := make([]Event, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ev, err := d.decodeMessage(msg)
		if err != nil {
			count := d.malformedMessages.Add(1)
			d.logger.WithError(err).WithFields(logrus.Fields{
				"method": msg.Method,
				"count":  count,
			}).Debug("跳过损坏的消息")
			continue
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	return events, meta, nil
}

func (d *Decoder) decodeMessage(msg Message) (Event, error) {
	switch msg.Method {
	case MethodChat:
		chat, err := parseChatMessage(msg.Payload)
		if err != nil {
			return nil, err
		}
		return chat, nil
	case MethodGift:
		gift, err := parseGiftMessage(msg.Payload)
		if err != nil {
			return nil, err
		}
		return gift, nil
	case MethodControl:
		ctl, err := parseControlMessage(msg.Payload)
		if err != nil {
			return nil, err
		}
		if ctl.Kind == ControlUnknown {
			// 其他控制状态与采集无关
			return nil, nil
		}
		return ctl, nil
	case MethodMember:
		return d.decodeMember(msg)
	default:
		// 未知 method 只计数，负载内容不落日志
		count := d.unknownMethods.Add(1)
		d.logger.WithFields(logrus.Fields{
			"method": msg.Method,
			"count":  count,
		}).Debug("忽略未知消息类型")
		return nil, nil
	}
}

func (d *Decoder) decodeMember(msg Message) (Event, error) {
	ctl, err := parseMemberMessage(msg.Payload)
	if err != nil {
		return nil, err
	}
	return ctl, nil
}
