package webcast

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Response 下行帧 payload 解压后的消息批
type Response struct {
	Messages      []Message
	Cursor        string
	FetchInterval uint64
	Now           uint64
	InternalExt   string
	NeedAck       bool
}

// Message 单条业务消息，method 决定 payload 的具体类型
type Message struct {
	Method  string
	Payload []byte
	MsgID   uint64
}

const (
	respFieldMessages      = 1
	respFieldCursor        = 2
	respFieldFetchInterval = 3
	respFieldNow           = 4
	respFieldInternalExt   = 5
	respFieldNeedAck       = 9
)

const (
	msgFieldMethod  = 1
	msgFieldPayload = 2
	msgFieldMsgID   = 3
)

func parseResponse(b []byte) (*Response, error) {
	resp := &Response{}
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
			case respFieldFetchInterval:
				resp.FetchInterval = v
			case respFieldNow:
				resp.Now = v
			case respFieldNeedAck:
				resp.NeedAck = v != 0
			}
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case respFieldMessages:
				msg, err := parseMessage(v)
				if err != nil {
					return nil, err
				}
				resp.Messages = append(resp.Messages, msg)
			case respFieldCursor:
				resp.Cursor = string(v)
			case respFieldInternalExt:
				resp.InternalExt = string(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return resp, nil
}

func parseMessage(b []byte) (Message, error) {
	msg := Message{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return msg, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return msg, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
			if num == msgFieldMsgID {
				msg.MsgID = v
			}
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return msg, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case msgFieldMethod:
				msg.Method = string(v)
			case msgFieldPayload:
				msg.Payload = v
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return msg, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return msg, nil
}
