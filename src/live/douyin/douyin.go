package douyin

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/hr3lxphr6j/requests"
	"github.com/tidwall/gjson"

	"github.com/danmu-go/danmu-go/src/live"
	"github.com/danmu-go/danmu-go/src/live/internal"
	"github.com/danmu-go/danmu-go/src/pkg/signer"
	"github.com/danmu-go/danmu-go/src/pkg/utils"
)

const (
	domain = "live.douyin.com"
	cnName = "抖音"

	liveURL      = "https://live.douyin.com/"
	roomEnterURL = "https://live.douyin.com/webcast/room/web/enter/"

	// 开播状态值
	statusLiving = 2

	msTokenLength = 182
)

var roomIdRegexp = regexp.MustCompile(`roomId\\":\\"(\d+)\\"`)

// 进程级 Signer，由 main 初始化
var (
	signerMu      sync.RWMutex
	defaultSigner signer.Signer
)

// SetSigner 设置签名实现
func SetSigner(s signer.Signer) {
	signerMu.Lock()
	defer signerMu.Unlock()
	defaultSigner = s
}

func getSigner() (signer.Signer, error) {
	signerMu.RLock()
	defer signerMu.RUnlock()
	if defaultSigner == nil {
		return nil, fmt.Errorf("douyin: signer not initialized")
	}
	return defaultSigner, nil
}

func init() {
	live.Register(domain, new(builder))
}

type builder struct{}

func (b *builder) Build(url *url.URL) (live.Live, error) {
	return &Live{
		BaseLive: internal.NewBaseLive(url),
	}, nil
}

type Live struct {
	internal.BaseLive

	mu     sync.Mutex
	ttwid  string
	roomID string
}

func (l *Live) GetPlatformCNName() string {
	return cnName
}

// webRid 从房间 URL 提取 web_rid
func (l *Live) webRid() (string, error) {
	rid := strings.Trim(l.Url.Path, "/")
	if rid == "" || strings.Contains(rid, "/") {
		return "", live.ErrRoomUrlIncorrect
	}
	return rid, nil
}

// getTtwid 首次访问直播首页换取 ttwid cookie，之后复用
func (l *Live) getTtwid() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ttwid != "" {
		return l.ttwid, nil
	}
	resp, err := l.RequestSession.Get(liveURL, live.CommonUserAgent)
	if err != nil {
		return "", fmt.Errorf("fetch ttwid: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch ttwid: response code %d", resp.StatusCode)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "ttwid" {
			l.ttwid = cookie.Value
			return l.ttwid, nil
		}
	}
	return "", fmt.Errorf("fetch ttwid: cookie not present")
}

// getRoomID 从房间页面提取内部 room_id，之后复用
func (l *Live) getRoomID() (string, error) {
	ttwid, err := l.getTtwid()
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.roomID != "" {
		return l.roomID, nil
	}
	rid := strings.Trim(l.Url.Path, "/")
	resp, err := l.RequestSession.Get(liveURL+rid,
		live.CommonUserAgent,
		requests.Cookies(map[string]string{
			"ttwid":      ttwid,
			"msToken":    utils.GenerateMsToken(msTokenLength),
			"__ac_nonce": "0123407cc00a9e438deb4",
		}),
	)
	if err != nil {
		return "", fmt.Errorf("fetch room page: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch room page: response code %d", resp.StatusCode)
	}
	body, err := resp.Text()
	if err != nil {
		return "", err
	}
	match := roomIdRegexp.FindStringSubmatch(body)
	if match == nil {
		return "", live.ErrRoomNotExist
	}
	l.roomID = match[1]
	return l.roomID, nil
}

// enterParams enter 接口的查询参数，顺序固定
// a_bogus 基于整个查询串计算，构造顺序必须与请求一致
func enterParams(webRid, msToken string) [][2]string {
	return [][2]string{
		{"aid", "6383"},
		{"app_name", "douyin_web"},
		{"live_id", "1"},
		{"device_platform", "web"},
		{"language", "zh-CN"},
		{"browser_language", "zh-CN"},
		{"browser_platform", "Win32"},
		{"browser_name", "Chrome"},
		{"browser_version", "116.0.0.0"},
		{"web_rid", webRid},
		{"msToken", msToken},
	}
}

func encodeParams(params [][2]string) string {
	var sb strings.Builder
	for i, kv := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(kv[0]))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv[1]))
	}
	return sb.String()
}

func (l *Live) GetInfo() (*live.Info, error) {
	webRid, err := l.webRid()
	if err != nil {
		return nil, err
	}
	ttwid, err := l.getTtwid()
	if err != nil {
		return nil, err
	}
	sgn, err := getSigner()
	if err != nil {
		return nil, err
	}

	msToken := utils.GenerateMsToken(msTokenLength)
	query := encodeParams(enterParams(webRid, msToken))
	aBogus, err := sgn.ABogus(query)
	if err != nil {
		return nil, fmt.Errorf("a_bogus: %w", err)
	}

	api := roomEnterURL + "?" + query + "&a_bogus=" + url.QueryEscape(aBogus)
	resp, err := l.RequestSession.Get(api,
		live.CommonUserAgent,
		requests.Cookies(map[string]string{
			"ttwid":   ttwid,
			"msToken": msToken,
		}),
		requests.Referer(liveURL+webRid),
	)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("room enter api: response code %d", resp.StatusCode)
	}
	body, err := resp.Bytes()
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return nil, fmt.Errorf("room enter api: unexpected response")
	}
	room := data.Get("data.0")
	status := room.Get("status")
	if !status.Exists() {
		return nil, fmt.Errorf("room enter api: status missing")
	}
	hostName := room.Get("anchor_name").String()
	if hostName == "" {
		hostName = data.Get("user.nickname").String()
	}

	info := &live.Info{
		Live:      l,
		HostName:  hostName,
		RoomName:  room.Get("title").String(),
		Status:    status.Int() == statusLiving,
		RawStatus: status.Int(),
	}
	return info, nil
}

// wssParamOrder 弹幕连接串参数及顺序
func wssParams(roomID string) [][2]string {
	return [][2]string{
		{"app_name", "douyin_web"},
		{"version_code", "180800"},
		{"webcast_sdk_version", "1.0.14-beta.0"},
		{"update_version_code", "1.0.14-beta.0"},
		{"compress", "gzip"},
		{"device_platform", "web"},
		{"cookie_enabled", "true"},
		{"screen_width", "1536"},
		{"screen_height", "864"},
		{"browser_language", "zh-CN"},
		{"browser_platform", "Win32"},
		{"browser_name", "Mozilla"},
		{"browser_version", "5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"},
		{"browser_online", "true"},
		{"tz_name", "Asia/Shanghai"},
		{"cursor", "d-1_u-1_fh-7392091211001140287_t-1721106114633_r-1"},
		{"internal_ext", "internal_src:dim|wss_push_room_id:" + roomID +
			"|wss_push_did:7319483754668557238|first_req_ms:1721106114541|fetch_time:1721106114633|seq:1" +
			"|wss_info:0-1721106114633-0-0|wrds_v:7392094459690748497"},
		{"host", "https://live.douyin.com"},
		{"aid", "6383"},
		{"live_id", "1"},
		{"did_rule", "3"},
		{"endpoint", "live_pc"},
		{"support_wrds", "1"},
		{"user_unique_id", "7319483754668557238"},
		{"im_path", "/webcast/im/fetch/"},
		{"identity", "audience"},
		{"need_persist_msg_count", "15"},
		{"insert_task_id", ""},
		{"live_reason", ""},
		{"room_id", roomID},
		{"heartbeatDuration", "0"},
	}
}

const wssEndpoint = "wss://webcast100-ws-web-lq.douyin.com/webcast/im/push/v2/"

// GetDanmakuInfo 构造已签名的弹幕 wss 连接参数
func (l *Live) GetDanmakuInfo() (*live.DanmakuInfo, error) {
	roomID, err := l.getRoomID()
	if err != nil {
		return nil, err
	}
	ttwid, err := l.getTtwid()
	if err != nil {
		return nil, err
	}
	sgn, err := getSigner()
	if err != nil {
		return nil, err
	}

	params := wssParams(roomID)
	signParams := make(map[string]string, len(params))
	for _, kv := range params {
		signParams[kv[0]] = kv[1]
	}
	signature, err := sgn.Sign(signParams)
	if err != nil {
		return nil, fmt.Errorf("wss signature: %w", err)
	}

	wss := wssEndpoint + "?" + encodeParams(params) + "&signature=" + url.QueryEscape(signature)

	header := http.Header{}
	header.Set("Cookie", "ttwid="+ttwid)
	header.Set("User-Agent", live.CommonUserAgentStr)

	return &live.DanmakuInfo{URL: wss, Header: header}, nil
}
