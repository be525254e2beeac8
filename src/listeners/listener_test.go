package listeners

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmu-go/danmu-go/src/configs"
	"github.com/danmu-go/danmu-go/src/instance"
	"github.com/danmu-go/danmu-go/src/live"
	"github.com/danmu-go/danmu-go/src/pkg/events"
	"github.com/danmu-go/danmu-go/src/pkg/livelogger"
	"github.com/danmu-go/danmu-go/src/types"
)

// fakeLive 按脚本返回状态序列，脚本耗尽后停在最后一个状态
type fakeLive struct {
	mu       sync.Mutex
	statuses []bool
	idx      int
	logger   *livelogger.LiveLogger
	opts     *live.Options
}

func newFakeLive(statuses ...bool) *fakeLive {
	return &fakeLive{
		statuses: statuses,
		logger:   livelogger.New(0, nil),
		opts:     live.MustNewOptions(),
	}
}

func (f *fakeLive) GetInfo() (*live.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := f.statuses[f.idx]
	if f.idx < len(f.statuses)-1 {
		f.idx++
	}
	return &live.Info{Live: f, HostName: "主播", RoomName: "测试房间", Status: status}, nil
}

func (f *fakeLive) SetLiveIdByString(string)        {}
func (f *fakeLive) GetLiveId() types.LiveID         { return "fake-live" }
func (f *fakeLive) GetRawUrl() string               { return "https://live.douyin.com/123" }
func (f *fakeLive) GetPlatformCNName() string       { return "抖音" }
func (f *fakeLive) GetLastStartTime() time.Time     { return time.Time{} }
func (f *fakeLive) SetLastStartTime(time.Time)      {}
func (f *fakeLive) GetOptions() *live.Options       { return f.opts }
func (f *fakeLive) GetLogger() *livelogger.LiveLogger {
	return f.logger
}
func (f *fakeLive) UpdateLiveOptionsbyConfig(context.Context, *configs.LiveRoom) error { return nil }
func (f *fakeLive) Close()                                                             {}

func newTestContext(t *testing.T) (context.Context, events.Dispatcher) {
	t.Helper()
	cfg := configs.NewConfig()
	cfg.Interval = 0 // 测试中不等待
	cfg.LiveInterval = 0
	configs.SetCurrentConfig(cfg)

	inst := &instance.Instance{
		Lives: make(map[types.LiveID]live.Live),
	}
	ctx := context.WithValue(context.Background(), instance.Key, inst)
	ed := events.NewDispatcher(ctx)
	return ctx, ed
}

func TestListenerDispatchesSingleLiveStart(t *testing.T) {
	ctx, ed := newTestContext(t)

	// 前三次未开播，之后一直开播：状态转变只发生一次
	fake := newFakeLive(false, false, false, true)

	var liveStarts atomic.Int32
	started := make(chan struct{}, 1)
	ed.AddEventListener(LiveStart, events.NewEventListener(func(event *events.Event) {
		if liveStarts.Add(1) == 1 {
			started <- struct{}{}
		}
	}))

	l := NewListener(ctx, fake)
	require.NoError(t, l.Start())
	defer l.Close()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("LiveStart not dispatched")
	}

	// 继续轮询到的 LIVE 状态不能再次触发事件
	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 1, liveStarts.Load())
}

func TestListenerDispatchesLiveEndOnTransition(t *testing.T) {
	ctx, ed := newTestContext(t)

	fake := newFakeLive(true, true, false)

	ended := make(chan struct{}, 1)
	ed.AddEventListener(LiveEnd, events.NewEventListener(func(event *events.Event) {
		select {
		case ended <- struct{}{}:
		default:
		}
	}))

	l := NewListener(ctx, fake)
	require.NoError(t, l.Start())
	defer l.Close()

	select {
	case <-ended:
	case <-time.After(3 * time.Second):
		t.Fatal("LiveEnd not dispatched")
	}
}

func TestManagerCloseWithoutLivesBalancesWaitGroup(t *testing.T) {
	ctx, _ := newTestContext(t)

	// 所有房间都构建失败时 Lives 为空，Start 没有 Add，
	// Close 也不能 Done，否则计数器变负直接 panic
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

func TestListenerCloseIdempotent(t *testing.T) {
	ctx, ed := newTestContext(t)

	fake := newFakeLive(false)

	var listenStops atomic.Int32
	ed.AddEventListener(ListenStop, events.NewEventListener(func(event *events.Event) {
		listenStops.Add(1)
	}))

	l := NewListener(ctx, fake)
	require.NoError(t, l.Start())
	l.Close()
	l.Close()

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, listenStops.Load())
}
