package live

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/hr3lxphr6j/requests"

	"github.com/danmu-go/danmu-go/src/configs"
	"github.com/danmu-go/danmu-go/src/pkg/livelogger"
	"github.com/danmu-go/danmu-go/src/pkg/ratelimit"
	"github.com/danmu-go/danmu-go/src/types"
)

var (
	ErrRoomNotExist     = errors.New("room not exists")
	ErrRoomUrlIncorrect = errors.New("room url incorrect")
	ErrNotImplemented   = errors.New("not implemented")
	ErrInternalError    = errors.New("internal error")
)

const CommonUserAgentStr = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36 Edg/140.0.0.0"

var CommonUserAgent = requests.UserAgent(CommonUserAgentStr)

var m = make(map[string]Builder)

func Register(domain string, b Builder) {
	m[domain] = b
}

func getBuilder(domain string) (Builder, bool) {
	builder, ok := m[domain]
	return builder, ok
}

type Builder interface {
	Build(*url.URL) (Live, error)
}

type Options struct {
	Cookies  *cookiejar.Jar
	NickName string
}

func NewOptions(opts ...Option) (*Options, error) {
	cookieJar, err := cookiejar.New(&cookiejar.Options{})
	if err != nil {
		return nil, err
	}
	options := &Options{Cookies: cookieJar}
	for _, opt := range opts {
		opt(options)
	}
	return options, nil
}

func MustNewOptions(opts ...Option) *Options {
	options, err := NewOptions(opts...)
	if err != nil {
		panic(err)
	}
	return options
}

type Option func(*Options)

func WithKVStringCookies(u *url.URL, cookies string) Option {
	return func(opts *Options) {
		cookiesList := make([]*http.Cookie, 0)
		for _, pairStr := range strings.Split(cookies, ";") {
			pairs := strings.SplitN(pairStr, "=", 2)
			if len(pairs) != 2 {
				continue
			}
			cookiesList = append(cookiesList, &http.Cookie{
				Name:  strings.TrimSpace(pairs[0]),
				Value: strings.TrimSpace(pairs[1]),
			})
		}
		opts.Cookies.SetCookies(u, cookiesList)
	}
}

func WithNickName(nickName string) Option {
	return func(opts *Options) {
		opts.NickName = nickName
	}
}

type Live interface {
	SetLiveIdByString(string)
	GetLiveId() types.LiveID
	GetRawUrl() string
	GetInfo() (*Info, error)
	GetPlatformCNName() string
	GetLastStartTime() time.Time
	SetLastStartTime(time.Time)
	UpdateLiveOptionsbyConfig(context.Context, *configs.LiveRoom) error
	GetOptions() *Options
	GetLogger() *livelogger.LiveLogger
	// Close 关闭 Live 对象，释放相关资源
	Close()
}

// DanmakuInfo 弹幕推送流的连接参数
type DanmakuInfo struct {
	URL    string
	Header http.Header
}

// DanmakuSource 能提供已签名弹幕连接串的 Live
type DanmakuSource interface {
	GetDanmakuInfo() (*DanmakuInfo, error)
}

// WrappedLive 给原始 Live 加上平台限流与信息缓存
type WrappedLive struct {
	Live
	cache gcache.Cache

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	lastRequestAt time.Time
}

// NewWrappedLive 创建一个带有缓存功能的 Live 包装器
// ctx 被取消后限流等待会立即返回
func NewWrappedLive(ctx context.Context, live Live, cache gcache.Cache) Live {
	wrappedCtx, cancel := context.WithCancel(ctx)
	return &WrappedLive{
		Live:   live,
		cache:  cache,
		ctx:    wrappedCtx,
		cancel: cancel,
	}
}

func (w *WrappedLive) Close() {
	w.cancel()
	w.Live.Close()
}

func (w *WrappedLive) GetInfo() (*Info, error) {
	// 在通用位置应用平台访问频率限制
	if !w.waitForPlatformRateLimit() {
		return nil, w.ctx.Err()
	}

	i, err := w.Live.GetInfo()

	if err != nil {
		if info, err2 := w.cache.Get(w); err2 == nil {
			// 将错误信息存到 LastError 而非 RoomName
			// 避免错误文本出现在输出文件名中
			info.(*Info).LastError = err.Error()
		}
		return nil, err
	}
	if w.cache != nil {
		i.LastError = ""
		w.cache.Set(w, i)
	}

	w.mu.Lock()
	w.lastRequestAt = time.Now()
	w.mu.Unlock()

	return i, nil
}

// GetCachedInfo 返回最近一次成功获取的信息，没有缓存时返回 ErrRoomNotExist
func (w *WrappedLive) GetCachedInfo() (*Info, error) {
	if w.cache == nil {
		return nil, ErrInternalError
	}
	v, err := w.cache.Get(w)
	if err != nil {
		return nil, ErrRoomNotExist
	}
	return v.(*Info), nil
}

// GetDanmakuInfo 透传给内部实现
func (w *WrappedLive) GetDanmakuInfo() (*DanmakuInfo, error) {
	if s, ok := w.Live.(DanmakuSource); ok {
		return s.GetDanmakuInfo()
	}
	return nil, ErrNotImplemented
}

func (w *WrappedLive) waitForPlatformRateLimit() bool {
	platformKey := configs.GetPlatformKeyFromUrl(w.GetRawUrl())
	if platformKey != "" {
		return ratelimit.GetGlobalRateLimiter().WaitForPlatformWithContext(w.ctx, platformKey)
	}
	return true
}

func New(ctx context.Context, room *configs.LiveRoom, cache gcache.Cache) (live Live, err error) {
	url, err := url.Parse(room.Url)
	if err != nil {
		return nil, err
	}
	builder, ok := getBuilder(url.Host)
	if !ok {
		return nil, errors.New("not support this url")
	}
	live, err = builder.Build(url)
	if err != nil {
		return
	}
	live.UpdateLiveOptionsbyConfig(ctx, room)
	live = NewWrappedLive(ctx, live, cache)
	return
}
