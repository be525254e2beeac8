package listeners

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/danmu-go/danmu-go/src/configs"
	"github.com/danmu-go/danmu-go/src/consts"
	"github.com/danmu-go/danmu-go/src/instance"
	"github.com/danmu-go/danmu-go/src/live"
	applog "github.com/danmu-go/danmu-go/src/log"
	"github.com/danmu-go/danmu-go/src/notify"
	"github.com/danmu-go/danmu-go/src/pkg/events"
	dgsentry "github.com/danmu-go/danmu-go/src/pkg/sentry"
)

const (
	begin uint32 = iota
	pending
	running
	stopped
)

type Listener interface {
	Start() error
	Close()
}

func NewListener(ctx context.Context, live live.Live) Listener {
	inst := instance.GetInstance(ctx)
	// 创建一个可取消的 context，用于控制 run 循环中的等待
	runCtx, cancel := context.WithCancel(ctx)
	return &listener{
		Live:      live,
		status:    status{},
		stop:      make(chan struct{}),
		ed:        inst.EventDispatcher.(events.Dispatcher),
		state:     begin,
		runCtx:    runCtx,
		runCancel: cancel,
	}
}

// status 上一次轮询观察到的房间状态
type status struct {
	roomName   string
	roomStatus bool
}

type listener struct {
	Live   live.Live
	status status
	ed     events.Dispatcher

	state     uint32
	stop      chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
}

func (l *listener) Start() error {
	if !atomic.CompareAndSwapUint32(&l.state, begin, pending) {
		return nil
	}
	defer atomic.CompareAndSwapUint32(&l.state, pending, running)

	l.ed.DispatchEvent(events.NewEvent(ListenStart, l.Live))
	l.refresh()
	dgsentry.Go(func() { l.run() })
	return nil
}

func (l *listener) Close() {
	if !atomic.CompareAndSwapUint32(&l.state, running, stopped) {
		return
	}
	l.ed.DispatchEvent(events.NewEvent(ListenStop, l.Live))
	l.runCancel()
	close(l.stop)
}

// sendLiveNotification 发送直播状态变更通知
func (l *listener) sendLiveNotification(hostName, status string) {
	if err := notify.SendNotification(l.Live.GetLogger(), hostName, l.Live.GetPlatformCNName(), l.Live.GetRawUrl(), status); err != nil {
		l.Live.GetLogger().WithError(err).WithField("host", hostName).Error("failed to send notification")
	}
}

// refresh 用于启动时的第一次信息获取（不等待间隔）
func (l *listener) refresh() {
	info, err := l.Live.GetInfo()
	if err != nil {
		l.Live.GetLogger().
			WithError(err).
			WithField("url", l.Live.GetRawUrl()).
			Error("failed to load room info")
		return
	}
	l.processInfo(info)
}

// pollInterval 根据当前观察到的状态选择轮询间隔
// 开播中用 live_interval，未开播（含探测失败）用 interval
func (l *listener) pollInterval() time.Duration {
	cfg := configs.GetCurrentConfig()
	if cfg == nil {
		return 45 * time.Second
	}
	resolved := cfg.GetEffectiveConfigForRoom(l.Live.GetRawUrl())
	seconds := resolved.Interval
	if l.status.roomStatus {
		seconds = resolved.LiveInterval
	}
	return time.Duration(seconds) * time.Second
}

func (l *listener) run() {
	for {
		timer := time.NewTimer(l.pollInterval())
		select {
		case <-l.stop:
			timer.Stop()
			return
		case <-l.runCtx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		info, err := l.Live.GetInfo()
		if err != nil {
			if l.runCtx.Err() != nil {
				return
			}
			// 探测失败视为状态未知：保持原有判断和节奏，不触发任何事件
			l.Live.GetLogger().
				WithError(err).
				WithField("url", l.Live.GetRawUrl()).
				Warn("failed to load room info, status unknown")
			continue
		}
		l.processInfo(info)
	}
}

// processInfo 处理获取到的直播间信息，检测状态变化并触发事件
func (l *listener) processInfo(info *live.Info) {
	hostName := info.HostName
	if hostName == "" {
		if wrappedLive, ok := l.Live.(*live.WrappedLive); ok {
			if cachedInfo, err := wrappedLive.GetCachedInfo(); err == nil && cachedInfo != nil {
				hostName = cachedInfo.HostName
			}
		}
	}

	var (
		latestStatus = status{roomName: info.RoomName, roomStatus: info.Status}
		evtTyp       events.EventType
		logInfo      string
		fields       = map[string]any{
			"room": info.RoomName,
			"host": info.HostName,
		}
	)
	defer func() { l.status = latestStatus }()

	if l.status.roomStatus == latestStatus.roomStatus {
		return
	}
	if latestStatus.roomStatus {
		l.Live.SetLastStartTime(time.Now())
		evtTyp = LiveStart
		logInfo = "Live Start"
		l.sendLiveNotification(hostName, consts.LiveStatusStart)
	} else {
		evtTyp = LiveEnd
		logInfo = "Live end"
		l.sendLiveNotification(hostName, consts.LiveStatusStop)
	}

	l.ed.DispatchEvent(events.NewEvent(evtTyp, l.Live))
	applog.GetLogger().WithFields(fields).Info(logInfo)
}
