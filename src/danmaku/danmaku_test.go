package danmaku

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluele/gcache"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/danmu-go/danmu-go/src/configs"
	"github.com/danmu-go/danmu-go/src/instance"
	"github.com/danmu-go/danmu-go/src/listeners"
	"github.com/danmu-go/danmu-go/src/live"
	"github.com/danmu-go/danmu-go/src/pkg/events"
	"github.com/danmu-go/danmu-go/src/pkg/livelogger"
	"github.com/danmu-go/danmu-go/src/pkg/webcast"
	"github.com/danmu-go/danmu-go/src/types"
)

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func buildMessage(method string, payload []byte) []byte {
	msg := appendBytesField(nil, 1, []byte(method))
	return appendBytesField(msg, 2, payload)
}

// buildFrame 把若干消息包进一条下行推送帧
func buildFrame(logID uint64, needAck bool, messages ...[]byte) []byte {
	var resp []byte
	for _, msg := range messages {
		resp = appendBytesField(resp, 1, msg)
	}
	resp = appendVarintField(resp, 4, 1721106115000)
	if needAck {
		resp = appendBytesField(resp, 5, []byte("ext"))
		resp = appendVarintField(resp, 9, 1)
	}

	frame := appendVarintField(nil, 2, logID)
	frame = appendBytesField(frame, 7, []byte("msg"))
	return appendBytesField(frame, 8, resp)
}

func chatMessage(content string, eventTime int64) []byte {
	user := appendVarintField(nil, 1, 42)
	user = appendBytesField(user, 3, []byte("观众"))
	chat := appendBytesField(nil, 2, user)
	chat = appendBytesField(chat, 3, []byte(content))
	chat = appendVarintField(chat, 15, uint64(eventTime))
	return buildMessage(webcast.MethodChat, chat)
}

func liveEndMessage() []byte {
	ctl := appendVarintField(nil, 2, 3)
	return buildMessage(webcast.MethodControl, ctl)
}

// fakeConn 从通道读帧，关闭后读写都报错
type fakeConn struct {
	in     chan []byte
	mu     sync.Mutex
	writes [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) push(frame []byte) {
	c.in <- frame
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-c.in:
		return websocket.BinaryMessage, frame, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) hasWrite(want []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.writes {
		if bytes.Equal(w, want) {
			return true
		}
	}
	return false
}

// fakeSessionLive 带弹幕连接串的假直播间
type fakeSessionLive struct {
	url    string
	id     types.LiveID
	status atomic.Bool
	logger *livelogger.LiveLogger
	opts   *live.Options
}

func newFakeSessionLive(url string, id types.LiveID) *fakeSessionLive {
	f := &fakeSessionLive{
		url:    url,
		id:     id,
		logger: livelogger.New(0, nil),
		opts:   live.MustNewOptions(),
	}
	f.status.Store(true)
	return f
}

func (f *fakeSessionLive) GetInfo() (*live.Info, error) {
	return &live.Info{Live: f, HostName: "主播", RoomName: "测试房间", Status: f.status.Load()}, nil
}

func (f *fakeSessionLive) GetDanmakuInfo() (*live.DanmakuInfo, error) {
	return &live.DanmakuInfo{URL: "wss://example.test/im/push/v2/?room=" + string(f.id)}, nil
}

func (f *fakeSessionLive) SetLiveIdByString(string)          {}
func (f *fakeSessionLive) GetLiveId() types.LiveID           { return f.id }
func (f *fakeSessionLive) GetRawUrl() string                 { return f.url }
func (f *fakeSessionLive) GetPlatformCNName() string         { return "抖音" }
func (f *fakeSessionLive) GetLastStartTime() time.Time       { return time.Time{} }
func (f *fakeSessionLive) SetLastStartTime(time.Time)        {}
func (f *fakeSessionLive) GetOptions() *live.Options         { return f.opts }
func (f *fakeSessionLive) GetLogger() *livelogger.LiveLogger { return f.logger }
func (f *fakeSessionLive) UpdateLiveOptionsbyConfig(context.Context, *configs.LiveRoom) error {
	return nil
}
func (f *fakeSessionLive) Close() {}

func newSessionTestContext(t *testing.T, mutate func(*configs.Config)) (context.Context, events.Dispatcher, string) {
	t.Helper()
	outDir := t.TempDir()
	cfg := configs.NewConfig()
	cfg.OutPutPath = outDir
	cfg.OutputTmpl = "out.jsonl"
	cfg.LiveInterval = 1
	if mutate != nil {
		mutate(cfg)
	}
	configs.SetCurrentConfig(cfg)

	inst := &instance.Instance{
		Lives: make(map[types.LiveID]live.Live),
		Cache: gcache.New(16).LRU().Build(),
	}
	ctx := context.WithValue(context.Background(), instance.Key, inst)
	ed := events.NewDispatcher(ctx)
	return ctx, ed, outDir
}

func swapDialer(t *testing.T, conn *fakeConn) {
	t.Helper()
	origDial := dialDanmaku
	dialDanmaku = func(context.Context, *live.DanmakuInfo, time.Duration) (wsConn, error) {
		return conn, nil
	}
	t.Cleanup(func() { dialDanmaku = origDial })
}

// waitForLines 轮询输出文件直到行数达到预期
func waitForLines(t *testing.T, path string, want int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) >= want && lines[0] != "" {
				return lines
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("output file %s did not reach %d lines", path, want)
	return nil
}

func TestDanmakuWritesRecordsAndAcks(t *testing.T) {
	ctx, _, outDir := newSessionTestContext(t, nil)
	conn := newFakeConn()
	swapDialer(t, conn)

	fake := newFakeSessionLive("https://live.douyin.com/111", "live-111")
	d, err := NewDanmaku(ctx, fake)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))
	defer d.Close()

	conn.push(buildFrame(7, true, chatMessage("主播好", 1721106114633)))

	lines := waitForLines(t, filepath.Join(outDir, "out.jsonl"), 1)
	assert.Contains(t, lines[0], `"content":"主播好"`)
	assert.Contains(t, lines[0], `"event_ts_ms":1721106114633`)

	// needAck 帧必须回确认
	assert.Eventually(t, func() bool {
		return conn.hasWrite(webcast.AckFrame(7, "ext"))
	}, 3*time.Second, 20*time.Millisecond)
}

func TestDanmakuSendsHeartbeat(t *testing.T) {
	ctx, _, _ := newSessionTestContext(t, func(cfg *configs.Config) {
		cfg.HeartbeatIntervalInSec = 1
	})
	conn := newFakeConn()
	swapDialer(t, conn)

	fake := newFakeSessionLive("https://live.douyin.com/222", "live-222")
	d, err := NewDanmaku(ctx, fake)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))
	defer d.Close()

	assert.Eventually(t, func() bool {
		return conn.hasWrite(webcast.HeartbeatFrame())
	}, 3*time.Second, 20*time.Millisecond)
}

func TestDanmakuGraceResumesOnReLive(t *testing.T) {
	ctx, ed, outDir := newSessionTestContext(t, func(cfg *configs.Config) {
		cfg.IdleGraceInSec = 60
	})
	conn := newFakeConn()
	swapDialer(t, conn)

	var stops atomic.Int32
	ed.AddEventListener(DanmakuStop, events.NewEventListener(func(*events.Event) {
		stops.Add(1)
	}))

	fake := newFakeSessionLive("https://live.douyin.com/333", "live-333")
	d, err := NewDanmaku(ctx, fake)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))
	defer d.Close()

	path := filepath.Join(outDir, "out.jsonl")
	conn.push(buildFrame(1, false, chatMessage("第一条", 1721106114633)))
	waitForLines(t, path, 1)

	// 流内下播消息进入宽限期，房间仍显示在播，下一次复核即恢复
	conn.push(buildFrame(2, false, liveEndMessage()))
	time.Sleep(1500 * time.Millisecond)

	conn.push(buildFrame(3, false, chatMessage("回来了", 1721106200000)))
	lines := waitForLines(t, path, 2)
	assert.Contains(t, lines[1], `"content":"回来了"`)

	// 会话没有结束，连接没被关
	assert.EqualValues(t, 0, stops.Load())
	assert.False(t, conn.isClosed())
}

func TestDanmakuGraceExpiryClosesOnce(t *testing.T) {
	ctx, ed, _ := newSessionTestContext(t, func(cfg *configs.Config) {
		cfg.IdleGraceInSec = 1
	})
	conn := newFakeConn()
	swapDialer(t, conn)

	var stops atomic.Int32
	ed.AddEventListener(DanmakuStop, events.NewEventListener(func(*events.Event) {
		stops.Add(1)
	}))

	fake := newFakeSessionLive("https://live.douyin.com/444", "live-444")
	fake.status.Store(false) // 宽限期内复核也确认已下播
	d, err := NewDanmaku(ctx, fake)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))

	conn.push(buildFrame(1, false, liveEndMessage()))

	assert.Eventually(t, conn.isClosed, 5*time.Second, 50*time.Millisecond)

	// 宽限期耗尽后会话自然结束，再次 Close 不能重复派发
	time.Sleep(100 * time.Millisecond)
	d.Close()
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, stops.Load())
}

func TestDanmakuGraceOutlastsLivenessTimeout(t *testing.T) {
	ctx, ed, _ := newSessionTestContext(t, func(cfg *configs.Config) {
		cfg.LivenessTimeoutInSec = 1
		cfg.IdleGraceInSec = 3
	})
	conn := newFakeConn()

	// 宽限期内服务端通常一言不发，不能因此判定死链重连
	var dials atomic.Int32
	origDial := dialDanmaku
	dialDanmaku = func(context.Context, *live.DanmakuInfo, time.Duration) (wsConn, error) {
		dials.Add(1)
		return conn, nil
	}
	t.Cleanup(func() { dialDanmaku = origDial })

	var stops atomic.Int32
	ed.AddEventListener(DanmakuStop, events.NewEventListener(func(*events.Event) {
		stops.Add(1)
	}))

	fake := newFakeSessionLive("https://live.douyin.com/999", "live-999")
	fake.status.Store(false)
	d, err := NewDanmaku(ctx, fake)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))
	defer d.Close()

	conn.push(buildFrame(1, false, liveEndMessage()))

	// 静默时间已远超假死窗口，连接必须原样保持
	time.Sleep(2 * time.Second)
	assert.EqualValues(t, 1, dials.Load())
	assert.False(t, conn.isClosed())

	// 宽限期到点才结束，且自始至终只有这一条连接
	assert.Eventually(t, conn.isClosed, 3*time.Second, 50*time.Millisecond)
	assert.Eventually(t, func() bool { return stops.Load() == 1 }, 2*time.Second, 50*time.Millisecond)
	assert.EqualValues(t, 1, dials.Load())
}

func TestDanmakuWriterFailureStopsOnlyOwnSession(t *testing.T) {
	badTmpl := "bad/out.jsonl"
	goodTmpl := "good/out.jsonl"
	ctx, ed, outDir := newSessionTestContext(t, func(cfg *configs.Config) {
		badRoom := configs.LiveRoom{Url: "https://live.douyin.com/555"}
		badRoom.OutputTmpl = &badTmpl
		goodRoom := configs.LiveRoom{Url: "https://live.douyin.com/666"}
		goodRoom.OutputTmpl = &goodTmpl
		cfg.LiveRooms = []configs.LiveRoom{badRoom, goodRoom}
	})

	origMkdir := mkdir
	mkdir = func(path string) error {
		if strings.Contains(path, "bad") {
			return errors.New("disk full")
		}
		return os.MkdirAll(path, os.ModePerm)
	}
	defer func() { mkdir = origMkdir }()

	// 两个会话各自一条假连接，按连接串里的房间号分发
	badConn := newFakeConn()
	goodConn := newFakeConn()
	origDial := dialDanmaku
	dialDanmaku = func(_ context.Context, info *live.DanmakuInfo, _ time.Duration) (wsConn, error) {
		if strings.Contains(info.URL, "555") {
			return badConn, nil
		}
		return goodConn, nil
	}
	t.Cleanup(func() { dialDanmaku = origDial })

	stopped := make(chan types.LiveID, 2)
	ed.AddEventListener(DanmakuStop, events.NewEventListener(func(event *events.Event) {
		stopped <- event.Object.(live.Live).GetLiveId()
	}))

	badLive := newFakeSessionLive("https://live.douyin.com/555", "live-555")
	goodLive := newFakeSessionLive("https://live.douyin.com/666", "live-666")

	bad, err := NewDanmaku(ctx, badLive)
	require.NoError(t, err)
	require.NoError(t, bad.Start(ctx))

	good, err := NewDanmaku(ctx, goodLive)
	require.NoError(t, err)
	require.NoError(t, good.Start(ctx))
	defer good.Close()

	// 首条记录触发建文件，落盘失败的会话自己结束
	badConn.push(buildFrame(1, false, chatMessage("写不进去", 1721106114633)))
	select {
	case id := <-stopped:
		assert.EqualValues(t, "live-555", id)
	case <-time.After(3 * time.Second):
		t.Fatal("failed session did not stop")
	}

	// 另一个会话不受影响，继续采集
	goodConn.push(buildFrame(1, false, chatMessage("还在", 1721106114633)))
	lines := waitForLines(t, filepath.Join(outDir, "good", "out.jsonl"), 1)
	assert.Contains(t, lines[0], `"content":"还在"`)
}

func TestDanmakuLeavesNoFileWithoutRecords(t *testing.T) {
	ctx, ed, outDir := newSessionTestContext(t, func(cfg *configs.Config) {
		maxRetries := 0
		room := configs.LiveRoom{Url: "https://live.douyin.com/101"}
		room.MaxConnectRetries = &maxRetries
		cfg.LiveRooms = []configs.LiveRoom{room}
	})

	origDial := dialDanmaku
	dialDanmaku = func(context.Context, *live.DanmakuInfo, time.Duration) (wsConn, error) {
		return nil, errors.New("connection refused")
	}
	t.Cleanup(func() { dialDanmaku = origDial })

	stopped := make(chan struct{}, 1)
	ed.AddEventListener(DanmakuStop, events.NewEventListener(func(*events.Event) {
		stopped <- struct{}{}
	}))

	fake := newFakeSessionLive("https://live.douyin.com/101", "live-101")
	fake.status.Store(false) // 复核确认已下播，会话立刻结束
	d, err := NewDanmaku(ctx, fake)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("session did not stop")
	}

	// 一条记录都没收到的会话不能留下空文件
	_, err = os.Stat(filepath.Join(outDir, "out.jsonl"))
	assert.True(t, os.IsNotExist(err))
}

func TestBuildOutputPathDefaultTemplate(t *testing.T) {
	ctx, _, outDir := newSessionTestContext(t, func(cfg *configs.Config) {
		cfg.OutputTmpl = "" // 用默认模板
	})

	fake := newFakeSessionLive("https://live.douyin.com/888", "live-888")
	d, err := NewDanmaku(ctx, fake)
	require.NoError(t, err)

	inst := instance.GetInstance(ctx)
	info := &live.Info{Live: fake, HostName: "主播", RoomName: "测试/房间"}
	require.NoError(t, inst.Cache.Set(fake, info))

	path, err := d.(*danmaku).buildOutputPath(configs.GetCurrentConfig().GetEffectiveConfigForRoom(fake.GetRawUrl()))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(path, outDir))
	assert.Contains(t, path, "抖音")
	assert.Contains(t, path, "[主播]")
	// 标题中的路径分隔符必须被替换掉
	assert.Contains(t, path, "测试／房间")
	assert.True(t, strings.HasSuffix(path, ".jsonl"))
}

func TestManagerAddsOnLiveStartIgnoresLiveEnd(t *testing.T) {
	ctx, ed, _ := newSessionTestContext(t, nil)
	conn := newFakeConn()
	swapDialer(t, conn)

	m := NewManager(ctx)
	require.NoError(t, m.Start(ctx))

	fake := newFakeSessionLive("https://live.douyin.com/777", "live-777")
	require.NoError(t, m.AddDanmaku(ctx, fake))
	assert.True(t, m.HasDanmaku(ctx, "live-777"))
	assert.ErrorIs(t, m.AddDanmaku(ctx, fake), ErrDanmakuExist)

	// 轮询器层面的 LiveEnd 不拆会话，流内消息说了算
	ed.DispatchEvent(events.NewEvent(listeners.LiveEnd, live.Live(fake)))
	time.Sleep(100 * time.Millisecond)
	assert.True(t, m.HasDanmaku(ctx, "live-777"))

	require.NoError(t, m.RemoveDanmaku(ctx, "live-777"))
	assert.False(t, m.HasDanmaku(ctx, "live-777"))
	assert.ErrorIs(t, m.RemoveDanmaku(ctx, "live-777"), ErrDanmakuNotExist)
}

func TestManagerCloseWithoutLivesBalancesWaitGroup(t *testing.T) {
	ctx, _, _ := newSessionTestContext(t, nil)

	// Lives 为空时 Start 不登记等待组，Close 也不能注销
	m := NewManager(ctx)
	require.NoError(t, m.Start(ctx))
	assert.NotPanics(t, func() { m.Close(ctx) })

	inst := instance.GetInstance(ctx)
	done := make(chan struct{})
	go func() {
		inst.WaitGroup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait group did not drain")
	}
}
