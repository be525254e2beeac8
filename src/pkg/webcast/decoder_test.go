package webcast

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func buildUser(id uint64, name string) []byte {
	var b []byte
	b = appendVarintField(b, 1, id)
	b = appendBytesField(b, 3, []byte(name))
	return b
}

func buildChatPayload(id uint64, name, content string, eventTime uint64) []byte {
	var b []byte
	b = appendBytesField(b, 2, buildUser(id, name))
	b = appendBytesField(b, 3, []byte(content))
	b = appendVarintField(b, 15, eventTime)
	return b
}

func buildGiftPayload(id uint64, name, giftName string, diamond, combo uint64) []byte {
	var gift []byte
	gift = appendVarintField(gift, 12, diamond)
	gift = appendBytesField(gift, 16, []byte(giftName))

	var b []byte
	b = appendVarintField(b, 6, combo)
	b = appendBytesField(b, 9, buildUser(id, name))
	b = appendBytesField(b, 15, gift)
	return b
}

func buildControlPayload(status uint64) []byte {
	return appendVarintField(nil, 2, status)
}

func buildMessage(method string, payload []byte) []byte {
	var b []byte
	b = appendBytesField(b, 1, []byte(method))
	b = appendBytesField(b, 2, payload)
	return b
}

type frameOpts struct {
	logID       uint64
	now         uint64
	needAck     bool
	internalExt string
	gzipped     bool
}

func buildFrame(t *testing.T, opts frameOpts, messages ...[]byte) []byte {
	t.Helper()
	var resp []byte
	for _, m := range messages {
		resp = appendBytesField(resp, 1, m)
	}
	resp = appendVarintField(resp, 4, opts.now)
	if opts.internalExt != "" {
		resp = appendBytesField(resp, 5, []byte(opts.internalExt))
	}
	if opts.needAck {
		resp = appendVarintField(resp, 9, 1)
	}

	payload := resp
	encoding := ""
	if opts.gzipped {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write(resp)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		payload = buf.Bytes()
		encoding = "gzip"
	}

	return (&PushFrame{
		LogID:           opts.logID,
		PayloadEncoding: encoding,
		Payload:         payload,
	}).Marshal()
}

func TestDecodeFrameChatAndGift(t *testing.T) {
	d := NewDecoder(nil)
	frame := buildFrame(t,
		frameOpts{logID: 77, now: 1721106114633, gzipped: true},
		buildMessage(MethodChat, buildChatPayload(1001, "观众甲", "666", 1721106114)),
		buildMessage(MethodGift, buildGiftPayload(1002, "观众乙", "小心心", 1, 3)),
	)

	events, meta, err := d.DecodeFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.EqualValues(t, 1721106114633, meta.ServerNow)
	assert.False(t, meta.NeedAck)

	chat, ok := events[0].(ChatMessage)
	require.True(t, ok, "帧内顺序必须保持")
	assert.EqualValues(t, 1001, chat.UserID)
	assert.Equal(t, "观众甲", chat.UserName)
	assert.Equal(t, "666", chat.Content)
	assert.EqualValues(t, 1721106114, chat.EventTime)

	gift, ok := events[1].(GiftMessage)
	require.True(t, ok)
	assert.Equal(t, "小心心", gift.GiftName)
	assert.EqualValues(t, 1, gift.GiftValue)
	assert.EqualValues(t, 3, gift.ComboCount)
}

func TestDecodeFrameAckSynthesis(t *testing.T) {
	d := NewDecoder(nil)
	frame := buildFrame(t, frameOpts{logID: 42, needAck: true, internalExt: "ext-blob"})

	_, meta, err := d.DecodeFrame(frame)
	require.NoError(t, err)
	require.True(t, meta.NeedAck)
	require.NotEmpty(t, meta.Ack)

	ack, err := parsePushFrame(meta.Ack)
	require.NoError(t, err)
	assert.EqualValues(t, 42, ack.LogID)
	assert.Equal(t, "ack", ack.PayloadType)
	assert.Equal(t, "ext-blob", string(ack.Payload))
}

func TestDecodeFrameControlAndMember(t *testing.T) {
	d := NewDecoder(nil)
	frame := buildFrame(t, frameOpts{},
		buildMessage(MethodMember, nil),
		buildMessage(MethodControl, buildControlPayload(3)),
		buildMessage(MethodControl, buildControlPayload(1)), // 非下播状态，丢弃
	)

	events, _, err := d.DecodeFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ControlEnter, events[0].(RoomControl).Kind)
	assert.Equal(t, ControlLiveEnd, events[1].(RoomControl).Kind)
}

func TestDecodeFrameSkipsMalformedAndUnknown(t *testing.T) {
	d := NewDecoder(nil)
	frame := buildFrame(t, frameOpts{},
		buildMessage(MethodChat, []byte{0xff, 0xff, 0xff}), // 损坏
		buildMessage("WebcastSomethingNew", []byte("whatever")),
		buildMessage(MethodChat, buildChatPayload(1, "甲", "还在", 0)),
	)

	events, _, err := d.DecodeFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "还在", events[0].(ChatMessage).Content)

	stats := d.Stats()
	assert.EqualValues(t, 1, stats.MalformedMessages)
	assert.EqualValues(t, 1, stats.UnknownMethods)
}

func TestDecodeFrameMalformedOuter(t *testing.T) {
	d := NewDecoder(nil)
	_, _, err := d.DecodeFrame([]byte{0xff, 0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestHeartbeatFrameRoundTrip(t *testing.T) {
	frame, err := parsePushFrame(HeartbeatFrame())
	require.NoError(t, err)
	assert.Equal(t, "hb", frame.PayloadType)
}
