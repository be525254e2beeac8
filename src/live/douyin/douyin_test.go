package douyin

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmu-go/danmu-go/src/live"
)

func TestWebRid(t *testing.T) {
	u, _ := url.Parse("https://live.douyin.com/123456")
	l := &Live{}
	l.Url = u
	rid, err := l.webRid()
	require.NoError(t, err)
	assert.Equal(t, "123456", rid)

	u, _ = url.Parse("https://live.douyin.com/")
	l.Url = u
	_, err = l.webRid()
	assert.ErrorIs(t, err, live.ErrRoomUrlIncorrect)
}

func TestEncodeParamsKeepsOrder(t *testing.T) {
	query := encodeParams([][2]string{
		{"b", "2"},
		{"a", "1"},
		{"c", "x y"},
	})
	// a_bogus 基于查询串原文计算，顺序和转义必须稳定
	assert.Equal(t, "b=2&a=1&c=x+y", query)
}

func TestWssParamsContainRoomID(t *testing.T) {
	params := wssParams("7392091211001140287")
	m := make(map[string]string, len(params))
	for _, kv := range params {
		m[kv[0]] = kv[1]
	}
	assert.Equal(t, "7392091211001140287", m["room_id"])
	assert.True(t, strings.Contains(m["internal_ext"], "wss_push_room_id:7392091211001140287"))
	assert.Equal(t, "gzip", m["compress"])
}
