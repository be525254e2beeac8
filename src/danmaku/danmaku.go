package danmaku

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"text/template"
	"time"

	"github.com/bluele/gcache"
	"github.com/gorilla/websocket"

	"github.com/danmu-go/danmu-go/src/configs"
	"github.com/danmu-go/danmu-go/src/instance"
	"github.com/danmu-go/danmu-go/src/live"
	"github.com/danmu-go/danmu-go/src/pkg/events"
	dgsentry "github.com/danmu-go/danmu-go/src/pkg/sentry"
	"github.com/danmu-go/danmu-go/src/pkg/utils"
	"github.com/danmu-go/danmu-go/src/pkg/webcast"
)

const (
	begin uint32 = iota
	pending
	running
	stopped
)

const maxBackoff = 30 * time.Second

// wsConn 会话对 websocket 连接的最小依赖
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// for test
var dialDanmaku = func(ctx context.Context, info *live.DanmakuInfo, timeout time.Duration) (wsConn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, info.URL, info.Header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func getDefaultOutputTmpl() *template.Template {
	return template.Must(template.New("output").Funcs(utils.GetFuncMap()).
		Parse(`{{ .Live.GetPlatformCNName }}/{{ with .Live.GetOptions.NickName }}{{ . | filenameFilter }}{{ else }}{{ .HostName | filenameFilter }}{{ end }}/{{ now | date "2006-01-02" }}/[{{ .HostName | filenameFilter }}][{{ .RoomName | filenameFilter }}].jsonl`))
}

type Danmaku interface {
	Start(ctx context.Context) error
	StartTime() time.Time
	Close()
}

type danmaku struct {
	Live    live.Live
	ed      events.Dispatcher
	cache   gcache.Cache
	decoder *webcast.Decoder

	// 输出文件，首条记录到达时才打开，只在 run goroutine 中访问
	outPath string
	writer  *Writer

	startTime time.Time
	stop      chan struct{}
	state     uint32
}

func NewDanmaku(ctx context.Context, l live.Live) (Danmaku, error) {
	inst := instance.GetInstance(ctx)
	return &danmaku{
		Live:      l,
		ed:        inst.EventDispatcher.(events.Dispatcher),
		cache:     inst.Cache,
		decoder:   webcast.NewDecoder(l.GetLogger()),
		startTime: time.Now(),
		state:     begin,
		stop:      make(chan struct{}),
	}, nil
}

func (d *danmaku) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&d.state, begin, pending) {
		return nil
	}
	defer atomic.CompareAndSwapUint32(&d.state, pending, running)
	d.ed.DispatchEvent(events.NewEvent(DanmakuStart, d.Live))
	dgsentry.GoWithContext(ctx, d.run)
	return nil
}

func (d *danmaku) StartTime() time.Time {
	return d.startTime
}

func (d *danmaku) Close() {
	if !atomic.CompareAndSwapUint32(&d.state, running, stopped) {
		// run goroutine 可能在 Start 完成前就结束了
		if !atomic.CompareAndSwapUint32(&d.state, pending, stopped) {
			return
		}
	}
	close(d.stop)
	d.ed.DispatchEvent(events.NewEvent(DanmakuStop, d.Live))
}

// wait 可被停止打断的休眠，返回 false 表示需要退出
func (d *danmaku) wait(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-d.stop:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// recheckStillLive 重试预算耗尽后复核一次房间状态
// 探测失败视为未知，按仍在直播处理，避免漏采
func (d *danmaku) recheckStillLive() bool {
	info, err := d.Live.GetInfo()
	if err != nil {
		return true
	}
	return info.Status
}

func (d *danmaku) buildOutputPath(resolved configs.ResolvedConfig) (string, error) {
	var info *live.Info
	if obj, err := d.cache.Get(d.Live); err == nil {
		info = obj.(*live.Info)
	} else {
		info = &live.Info{Live: d.Live}
	}

	tmpl := getDefaultOutputTmpl()
	if resolved.OutputTmpl != "" {
		if userTmpl, err := template.New("user_output").Funcs(utils.GetFuncMap()).Parse(resolved.OutputTmpl); err == nil {
			tmpl = userTmpl
		}
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, info); err != nil {
		return "", fmt.Errorf("render output path: %w", err)
	}
	return filepath.Join(resolved.OutPutPath, buf.String()), nil
}

func (d *danmaku) run(ctx context.Context) {
	defer d.Close()
	logger := d.Live.GetLogger()

	cfg := configs.GetCurrentConfig()
	if cfg == nil {
		logger.Error("configuration is nil")
		return
	}
	resolved := cfg.GetEffectiveConfigForRoom(d.Live.GetRawUrl())

	source, ok := d.Live.(live.DanmakuSource)
	if !ok {
		logger.Error("platform does not provide danmaku stream")
		return
	}

	// 输出目标整个会话只解析一次，文件本身等首条记录再建
	path, err := d.buildOutputPath(resolved)
	if err != nil {
		logger.WithError(err).Error("failed to resolve output path")
		return
	}
	d.outPath = path
	defer func() {
		if d.writer != nil {
			d.writer.Close()
		}
	}()

	connectTimeout := time.Duration(cfg.ConnectTimeoutInSec) * time.Second
	retries := 0
	backoff := time.Second
	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		var conn wsConn
		danmakuInfo, err := source.GetDanmakuInfo()
		if err == nil {
			conn, err = dialDanmaku(ctx, danmakuInfo, connectTimeout)
		}
		if err != nil {
			logger.WithError(err).Warn("连接弹幕服务失败")
			retries++
			if retries > resolved.MaxConnectRetries {
				// 预算耗尽：复核一次状态，已下播就结束会话
				if !d.recheckStillLive() {
					logger.Info("直播已结束，停止采集")
					return
				}
				// 仍在直播或状态未知：歇一个轮询周期再从头试
				if !d.wait(ctx, time.Duration(resolved.Interval)*time.Second) {
					return
				}
				retries, backoff = 0, time.Second
				continue
			}
			if !d.wait(ctx, backoff) {
				return
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		reason, gotFrames := d.stream(ctx, conn, cfg, resolved)
		conn.Close()
		if errors.Is(reason, errStopped) || errors.Is(reason, errSessionEnd) || errors.Is(reason, errWriteFatal) {
			return
		}
		// 连接断开：真正收到过数据的连接算成功，重置重试预算
		if gotFrames {
			retries, backoff = 0, time.Second
		}
		logger.WithError(reason).Warn("弹幕连接断开，准备重连")
		if !d.wait(ctx, backoff) {
			return
		}
	}
}

// writeRecord 追加一条记录，首次写入时才创建输出文件
// 从未收到记录的会话不在磁盘上留下空文件和目录
func (d *danmaku) writeRecord(record *CanonicalRecord) error {
	if d.writer == nil {
		w, err := NewWriter(d.outPath)
		if err != nil {
			return err
		}
		d.writer = w
		d.Live.GetLogger().WithField("file", d.outPath).Info("开始采集弹幕")
	}
	return d.writer.Write(record)
}

// stream 消费一条连接上的帧直到连接终结
// 单消费者顺序处理，保证记录落盘顺序与帧内顺序一致
func (d *danmaku) stream(ctx context.Context, conn wsConn, cfg *configs.Config, resolved configs.ResolvedConfig) (reason error, gotFrames bool) {
	logger := d.Live.GetLogger()

	frames := make(chan []byte, 64)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	// 读泵：唯一调用 ReadMessage 的 goroutine
	dgsentry.Go(func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case readErr <- err:
				case <-done:
				}
				return
			}
			select {
			case frames <- data:
			case <-done:
				return
			}
		}
	})

	heartbeatInterval := time.Duration(cfg.HeartbeatIntervalInSec) * time.Second
	if heartbeatInterval <= 0 {
		heartbeatInterval = 5 * time.Second
	}
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	livenessTimeout := time.Duration(cfg.LivenessTimeoutInSec) * time.Second
	if livenessTimeout <= 0 {
		livenessTimeout = time.Minute
	}
	liveness := time.NewTimer(livenessTimeout)
	defer liveness.Stop()

	// 宽限期状态：流内收到下播消息后启动
	var graceC <-chan time.Time
	var gracePoll *time.Ticker
	var gracePollC <-chan time.Time
	defer func() {
		if gracePoll != nil {
			gracePoll.Stop()
		}
	}()

	for {
		select {
		case <-d.stop:
			return errStopped, gotFrames
		case <-ctx.Done():
			return errStopped, gotFrames
		case err := <-readErr:
			return fmt.Errorf("%w: %v", errConnLost, err), gotFrames
		case <-liveness.C:
			return fmt.Errorf("%w: no inbound frame in %s", errConnLost, livenessTimeout), gotFrames
		case <-heartbeat.C:
			if err := conn.WriteMessage(websocket.BinaryMessage, webcast.HeartbeatFrame()); err != nil {
				return fmt.Errorf("%w: heartbeat: %v", errConnLost, err), gotFrames
			}
		case <-graceC:
			logger.Info("下播宽限期结束，关闭连接")
			return errSessionEnd, gotFrames
		case <-gracePollC:
			// 宽限期内按直播中间隔复核状态，回播则恢复
			if info, err := d.Live.GetInfo(); err == nil && info.Status {
				logger.Info("宽限期内重新开播，继续采集")
				liveness.Reset(livenessTimeout)
				graceC = nil
				gracePoll.Stop()
				gracePoll, gracePollC = nil, nil
			}
		case data := <-frames:
			gotFrames = true
			// 宽限期内连接通常只剩出站心跳，静默不按假死处理
			if graceC == nil {
				liveness.Reset(livenessTimeout)
			}
			evs, meta, err := d.decoder.DecodeFrame(data)
			if err != nil {
				logger.WithError(err).Debug("丢弃无法解析的帧")
				continue
			}
			if meta.NeedAck {
				if err := conn.WriteMessage(websocket.BinaryMessage, meta.Ack); err != nil {
					return fmt.Errorf("%w: ack: %v", errConnLost, err), gotFrames
				}
			}
			for _, ev := range evs {
				if ctl, isCtl := ev.(webcast.RoomControl); isCtl {
					if ctl.Kind == webcast.ControlLiveEnd && graceC == nil {
						logger.Info("收到下播控制消息，进入宽限期")
						// 宽限有自己的到期与状态复核，挂起假死检测
						if !liveness.Stop() {
							select {
							case <-liveness.C:
							default:
							}
						}
						graceC = time.After(resolved.IdleGrace())
						livePollInterval := time.Duration(resolved.LiveInterval) * time.Second
						if livePollInterval <= 0 {
							livePollInterval = time.Second
						}
						gracePoll = time.NewTicker(livePollInterval)
						gracePollC = gracePoll.C
					}
					continue
				}
				record := Normalize(ev, resolved, meta.ServerNow, time.Now())
				if record == nil {
					continue
				}
				if chat, isChat := ev.(webcast.ChatMessage); isChat {
					logger.WithField("user", chat.UserName).Info(chat.Content)
				}
				if err := d.writeRecord(record); err != nil {
					logger.WithError(err).Error("写入输出文件失败，停止该直播间采集")
					return errWriteFatal, gotFrames
				}
			}
		}
	}
}
