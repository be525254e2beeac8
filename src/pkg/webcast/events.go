package webcast

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// 下行消息 method 值
const (
	MethodChat    = "WebcastChatMessage"
	MethodGift    = "WebcastGiftMessage"
	MethodControl = "WebcastControlMessage"
	MethodMember  = "WebcastMemberMessage"
)

// ControlKind 房间控制事件类别
type ControlKind int

const (
	ControlUnknown ControlKind = iota
	ControlEnter
	ControlLiveEnd
)

func (k ControlKind) String() string {
	switch k {
	case ControlEnter:
		return "ENTER"
	case ControlLiveEnd:
		return "LIVE_END"
	default:
		return "UNKNOWN"
	}
}

// Event 解码后的领域事件，ChatMessage/GiftMessage/RoomControl 之一
type Event interface {
	eventTag()
}

// ChatMessage 弹幕消息
type ChatMessage struct {
	UserID    int64
	UserName  string
	Content   string
	EventTime int64 // 服务端原始时间值，单位不定，由归一化层处理
}

// GiftMessage 礼物消息
type GiftMessage struct {
	UserID     int64
	UserName   string
	GiftName   string
	GiftValue  int64 // 单个礼物价值(钻)
	ComboCount int64
	RepeatEnd  bool
	EventTime  int64
}

// RoomControl 房间控制事件
type RoomControl struct {
	Kind      ControlKind
	EventTime int64
}

func (ChatMessage) eventTag() {}
func (GiftMessage) eventTag() {}
func (RoomControl) eventTag() {}

// walkFields 遍历一段 protobuf 字节的顶层字段
// varint 字段通过 v 传递，长度定界字段通过 raw 传递，其余类型跳过
func walkFields(b []byte, visit func(num protowire.Number, v uint64, raw []byte)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
			visit(num, v, nil)
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
			visit(num, 0, v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

// user 消息内嵌的用户信息
type wireUser struct {
	ID       int64
	NickName string
}

func parseUser(b []byte) (wireUser, error) {
	u := wireUser{}
	err := walkFields(b, func(num protowire.Number, v uint64, raw []byte) {
		switch num {
		case 1: // id
			u.ID = int64(v)
		case 3: // nickName
			if raw != nil {
				u.NickName = string(raw)
			}
		}
	})
	return u, err
}

// common 消息公共头，这里只取 createTime
func parseCommonCreateTime(b []byte) (int64, error) {
	var createTime int64
	err := walkFields(b, func(num protowire.Number, v uint64, raw []byte) {
		if num == 4 {
			createTime = int64(v)
		}
	})
	return createTime, err
}

func parseChatMessage(b []byte) (ChatMessage, error) {
	chat := ChatMessage{}
	var innerErr error
	err := walkFields(b, func(num protowire.Number, v uint64, raw []byte) {
		switch num {
		case 1: // common
			if raw != nil && chat.EventTime == 0 {
				if ct, err := parseCommonCreateTime(raw); err == nil {
					chat.EventTime = ct
				}
			}
		case 2: // user
			if raw != nil {
				u, err := parseUser(raw)
				if err != nil {
					innerErr = err
					return
				}
				chat.UserID = u.ID
				chat.UserName = u.NickName
			}
		case 3: // content
			if raw != nil {
				chat.Content = string(raw)
			}
		case 15: // eventTime，优先于 common.createTime
			chat.EventTime = int64(v)
		}
	})
	if err == nil {
		err = innerErr
	}
	return chat, err
}

// giftStruct 礼物描述
type wireGift struct {
	Name         string
	DiamondCount int64
}

func parseGiftStruct(b []byte) (wireGift, error) {
	g := wireGift{}
	err := walkFields(b, func(num protowire.Number, v uint64, raw []byte) {
		switch num {
		case 12: // diamondCount
			g.DiamondCount = int64(v)
		case 16: // name
			if raw != nil {
				g.Name = string(raw)
			}
		}
	})
	return g, err
}

func parseGiftMessage(b []byte) (GiftMessage, error) {
	gift := GiftMessage{}
	var innerErr error
	err := walkFields(b, func(num protowire.Number, v uint64, raw []byte) {
		switch num {
		case 1: // common
			if raw != nil {
				if ct, err := parseCommonCreateTime(raw); err == nil {
					gift.EventTime = ct
				}
			}
		case 6: // comboCount
			gift.ComboCount = int64(v)
		case 9: // user
			if raw != nil {
				u, err := parseUser(raw)
				if err != nil {
					innerErr = err
					return
				}
				gift.UserID = u.ID
				gift.UserName = u.NickName
			}
		case 11: // repeatEnd
			gift.RepeatEnd = v != 0
		case 15: // gift
			if raw != nil {
				g, err := parseGiftStruct(raw)
				if err != nil {
					innerErr = err
					return
				}
				gift.GiftName = g.Name
				gift.GiftValue = g.DiamondCount
			}
		}
	})
	if err == nil {
		err = innerErr
	}
	if gift.ComboCount == 0 {
		gift.ComboCount = 1
	}
	return gift, err
}

// controlStatusLiveEnd 控制消息中表示下播的状态值
const controlStatusLiveEnd = 3

func parseControlMessage(b []byte) (RoomControl, error) {
	ctl := RoomControl{Kind: ControlUnknown}
	err := walkFields(b, func(num protowire.Number, v uint64, raw []byte) {
		switch num {
		case 1: // common
			if raw != nil {
				if ct, err := parseCommonCreateTime(raw); err == nil {
					ctl.EventTime = ct
				}
			}
		case 2: // status
			if v == controlStatusLiveEnd {
				ctl.Kind = ControlLiveEnd
			}
		}
	})
	return ctl, err
}

func parseMemberMessage(b []byte) (RoomControl, error) {
	ctl := RoomControl{Kind: ControlEnter}
	err := walkFields(b, func(num protowire.Number, v uint64, raw []byte) {
		if num == 1 && raw != nil {
			if ct, err := parseCommonCreateTime(raw); err == nil {
				ctl.EventTime = ct
			}
		}
	})
	return ctl, err
}
