package configs

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danmu-go/danmu-go/src/pkg/ratelimit"
	"github.com/danmu-go/danmu-go/src/pkg/utils"
	"github.com/danmu-go/danmu-go/src/types"
)

type Log struct {
	OutPutFolder string `yaml:"out_put_folder" json:"out_put_folder"`
	SaveLastLog  bool   `yaml:"save_last_log" json:"save_last_log"`
	// RotateDays 指定按"天"为单位滚动日志时，最多保留的天数（<=0 表示不清理）
	RotateDays int `yaml:"rotate_days" json:"rotate_days"`
}

// 通知服务所需配置
type Notify struct {
	Email Email `yaml:"email" json:"email"`
}

type Email struct {
	Enable         bool   `yaml:"enable" json:"enable"`
	SMTPHost       string `yaml:"smtpHost" json:"smtpHost"`
	SMTPPort       int    `yaml:"smtpPort" json:"smtpPort"`
	SenderEmail    string `yaml:"senderEmail" json:"senderEmail"`
	SenderPassword string `yaml:"senderPassword" json:"senderPassword"`
	RecipientEmail string `yaml:"recipientEmail" json:"recipientEmail"`
}

// OverridableConfig 包含可以在不同层级被覆盖的设置
// 采用指针模式以区分"未设置"和"设置为零值"
type OverridableConfig struct {
	Interval           *int    `yaml:"interval,omitempty" json:"interval,omitempty"`                         // 未开播时的轮询间隔(秒)
	LiveInterval       *int    `yaml:"live_interval,omitempty" json:"live_interval,omitempty"`               // 直播中的轮询间隔(秒)
	OutPutPath         *string `yaml:"out_put_path,omitempty" json:"out_put_path,omitempty"`                 // 输出根目录
	OutputTmpl         *string `yaml:"out_put_tmpl,omitempty" json:"out_put_tmpl,omitempty"`                 // 输出文件路径模板
	Timezone           *string `yaml:"timezone,omitempty" json:"timezone,omitempty"`                         // 时间戳格式化所用时区
	GiftValueThreshold *int    `yaml:"gift_value_threshold,omitempty" json:"gift_value_threshold,omitempty"` // 礼物总价值过滤阈值(钻)
	IdleGraceInSec     *int    `yaml:"idle_grace_in_sec,omitempty" json:"idle_grace_in_sec,omitempty"`       // 流内下播后保持连接的宽限期(秒)
	MaxConnectRetries  *int    `yaml:"max_connect_retries,omitempty" json:"max_connect_retries,omitempty"`   // 单轮连接重试次数上限
}

// PlatformConfig 包含平台特定的设置
type PlatformConfig struct {
	OverridableConfig    `yaml:",inline" json:",inline"`
	Name                 string `yaml:"name" json:"name"`                                                           // 平台中文名称
	MinAccessIntervalSec int    `yaml:"min_access_interval_sec,omitempty" json:"min_access_interval_sec,omitempty"` // 平台访问最小间隔(秒)，用于防风控
}

// Config content all config info.
type Config struct {
	// 核心配置
	File    string `yaml:"-" json:"-"`
	Debug   bool   `yaml:"debug" json:"debug"`
	Version int64  `yaml:"-" json:"-"` // 内部版本号：不参与 YAML/JSON 序列化，仅用于乐观并发控制

	// 全局默认配置（非指针，提供默认值）
	Interval           int    `yaml:"interval" json:"interval"`
	LiveInterval       int    `yaml:"live_interval" json:"live_interval"`
	OutPutPath         string `yaml:"out_put_path" json:"out_put_path"`
	OutputTmpl         string `yaml:"out_put_tmpl" json:"out_put_tmpl"`
	Timezone           string `yaml:"timezone" json:"timezone"`
	GiftValueThreshold int    `yaml:"gift_value_threshold" json:"gift_value_threshold"`
	IdleGraceInSec     int    `yaml:"idle_grace_in_sec" json:"idle_grace_in_sec"`
	MaxConnectRetries  int    `yaml:"max_connect_retries" json:"max_connect_retries"`
	Log                Log    `yaml:"log" json:"log"`

	// 连接参数（全局，一般无需调整）
	ConnectTimeoutInSec    int `yaml:"connect_timeout_in_sec" json:"connect_timeout_in_sec"`       // 建立 websocket 连接的超时(秒)
	LivenessTimeoutInSec   int `yaml:"liveness_timeout_in_sec" json:"liveness_timeout_in_sec"`     // 无任何入站帧视为死链的窗口(秒)
	HeartbeatIntervalInSec int `yaml:"heartbeat_interval_in_sec" json:"heartbeat_interval_in_sec"` // 心跳帧发送周期(秒)

	// 直播间列表
	LiveRooms []LiveRoom `yaml:"live_rooms" json:"live_rooms"`

	// Cookies 配置
	Cookies map[string]string `yaml:"cookies" json:"cookies"`

	// 通知服务配置
	Notify Notify `yaml:"notify" json:"notify"`

	// 平台特定配置（层级覆盖，使用 OverridableConfig 中的指针模式）
	PlatformConfigs map[string]PlatformConfig `yaml:"platform_configs,omitempty" json:"platform_configs,omitempty"`

	// 内部缓存
	liveRoomIndexCache map[string]int `json:"-"`
}

// 使用 atomic.Value 存放当前配置指针，避免并发读写造成 data race
var config atomic.Value // stores *Config

// 单独的 Debug 原子标志，便于高频读取
var currentDebug atomic.Bool

// 序列化所有 Update 操作，避免并发更新造成的丢写问题
var updateMu sync.Mutex

// 当期望版本与实际版本不一致时返回的错误
var ErrConfigVersionConflict = errors.New("config version conflict")

func SetCurrentConfig(cfg *Config) {
	if cfg == nil {
		config.Store((*Config)(nil))
		currentDebug.Store(false)
		return
	}
	config.Store(cfg)
	currentDebug.Store(cfg.Debug)
	// 配置更新时同步平台访问频率限制器
	cfg.syncPlatformRateLimits()
}

func GetCurrentConfig() *Config {
	v := config.Load()
	if v == nil {
		return nil
	}
	return v.(*Config)
}

// IsDebug 提供并发安全、低开销的 Debug 值读取
func IsDebug() bool {
	return currentDebug.Load()
}

// Update 采用“复制-更新-原子替换”模式安全更新全局配置，并持久化到文件。
// 传入的 mutator 只能对函数参数 c 进行修改，不要持有 c 的指针做异步修改。
// 返回更新后的新配置快照。
func Update(mutator func(c *Config) error) (*Config, error) {
	return updateImpl(mutator, true)
}

// UpdateTransient 与 Update 类似，但不进行文件持久化，仅更新内存配置。
func UpdateTransient(mutator func(c *Config) error) (*Config, error) {
	return updateImpl(mutator, false)
}

func updateImpl(mutator func(c *Config) error, persist bool) (*Config, error) {
	updateMu.Lock()
	defer updateMu.Unlock()
	old := GetCurrentConfig()
	// 若当前尚未设置配置，则以默认配置为基础
	var base *Config
	if old == nil {
		base = NewConfig()
	} else {
		base = CloneConfigShallow(old)
	}
	if err := mutator(base); err != nil {
		return nil, err
	}
	base.RefreshLiveRoomIndexCache()
	if old == nil {
		base.Version = 1
	} else {
		base.Version = old.Version + 1
	}
	newCfg := base

	if persist && newCfg.File != "" {
		if err := newCfg.Marshal(); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}

	SetCurrentConfig(newCfg)
	return newCfg, nil
}

// UpdateCAS 使用期望版本进行乐观并发控制，版本不匹配则返回 ErrConfigVersionConflict
func UpdateCAS(expectedVersion int64, mutator func(c *Config) error) (*Config, error) {
	return updateCASImpl(expectedVersion, mutator, true)
}

func updateCASImpl(expectedVersion int64, mutator func(c *Config) error, persist bool) (*Config, error) {
	updateMu.Lock()
	defer updateMu.Unlock()
	cur := GetCurrentConfig()
	var curVersion int64
	if cur != nil {
		curVersion = cur.Version
	}
	if curVersion != expectedVersion {
		return nil, ErrConfigVersionConflict
	}
	var base *Config
	if cur == nil {
		base = NewConfig()
	} else {
		base = CloneConfigShallow(cur)
	}
	if err := mutator(base); err != nil {
		return nil, err
	}
	base.RefreshLiveRoomIndexCache()
	base.Version = expectedVersion + 1

	if persist && base.File != "" {
		if err := base.Marshal(); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}

	SetCurrentConfig(base)
	return base, nil
}

// UpdateWithRetry 在读取-修改-提交之间做乐观锁重试，避免调用方自行实现重试逻辑
// maxRetries 为最大重试次数（不含首次尝试），backoff 为两次冲突之间的等待时间
func UpdateWithRetry(mutator func(c *Config) error, maxRetries int, backoff time.Duration) (*Config, error) {
	return updateWithRetryImpl(mutator, maxRetries, backoff, true)
}

// UpdateWithRetryTransient 同 UpdateWithRetry，但仅更新内存
func UpdateWithRetryTransient(mutator func(c *Config) error, maxRetries int, backoff time.Duration) (*Config, error) {
	return updateWithRetryImpl(mutator, maxRetries, backoff, false)
}

func updateWithRetryImpl(mutator func(c *Config) error, maxRetries int, backoff time.Duration, persist bool) (*Config, error) {
	for attempt := 0; ; attempt++ {
		snapshot := GetCurrentConfig()
		var ver int64
		if snapshot != nil {
			ver = snapshot.Version
		}
		cfg, err := updateCASImpl(ver, mutator, persist)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, ErrConfigVersionConflict) {
			return nil, err
		}
		if attempt >= maxRetries {
			return nil, err
		}
		time.Sleep(backoff)
	}
}

// SetDebug 原子更新 Debug 标志。
func SetDebug(v bool) (*Config, error) {
	return UpdateWithRetry(func(c *Config) error { c.Debug = v; return nil }, 3, 10*time.Millisecond)
}

// SetCookie 设置某个 host 的 Cookie。
func SetCookie(host, cookie string) (*Config, error) {
	return UpdateWithRetry(func(c *Config) error {
		if c.Cookies == nil {
			c.Cookies = make(map[string]string)
		}
		c.Cookies[host] = cookie
		return nil
	}, 3, 10*time.Millisecond)
}

// AppendLiveRoom 追加一个 LiveRoom。
func AppendLiveRoom(room LiveRoom) (*Config, error) {
	return UpdateWithRetry(func(c *Config) error {
		c.LiveRooms = append(c.LiveRooms, room)
		return nil
	}, 3, 10*time.Millisecond)
}

// SetLiveRoomId 设置指定 URL 的房间的 LiveId
// LiveId 不持久化，因此使用 Transient 更新
func SetLiveRoomId(url string, id types.LiveID) (*Config, error) {
	return UpdateWithRetryTransient(func(c *Config) error {
		if room, err := c.GetLiveRoomByUrl(url); err == nil {
			room.LiveId = id
		}
		return nil
	}, 3, 10*time.Millisecond)
}

type LiveRoom struct {
	Url         string       `yaml:"url" json:"url"`
	IsListening bool         `yaml:"is_listening" json:"is_listening"`
	LiveId      types.LiveID `yaml:"-" json:"live_id,omitempty"`
	NickName    string       `yaml:"nick_name,omitempty" json:"nick_name,omitempty"`

	// 房间级可覆盖配置
	OverridableConfig `yaml:",inline" json:",inline"`
}

type liveRoomAlias LiveRoom

// allow both string and LiveRoom format in config
func (l *LiveRoom) UnmarshalYAML(unmarshal func(any) error) error {
	liveRoomAlias := liveRoomAlias{
		IsListening: true,
	}
	if err := unmarshal(&liveRoomAlias); err != nil {
		var url string
		if err = unmarshal(&url); err != nil {
			return err
		}
		liveRoomAlias.Url = url
	}
	*l = LiveRoom(liveRoomAlias)

	return nil
}

func NewLiveRoomsWithStrings(strings []string) []LiveRoom {
	if len(strings) == 0 {
		return make([]LiveRoom, 0, 4)
	}
	liveRooms := make([]LiveRoom, len(strings))
	for index, url := range strings {
		liveRooms[index].Url = url
		liveRooms[index].IsListening = true
	}
	return liveRooms
}

var defaultConfig = Config{
	Debug:              false,
	Interval:           45,
	LiveInterval:       15,
	OutPutPath:         "./",
	OutputTmpl:         "",
	Timezone:           "Asia/Shanghai",
	GiftValueThreshold: 0,
	IdleGraceInSec:     1800,
	MaxConnectRetries:  5,
	Log: Log{
		OutPutFolder: "./",
		SaveLastLog:  true,
		RotateDays:   7,
	},
	ConnectTimeoutInSec:    10,
	LivenessTimeoutInSec:   60,
	HeartbeatIntervalInSec: 5,
	LiveRooms:              []LiveRoom{},
	File:                   "",
	liveRoomIndexCache:     map[string]int{},
	Notify: Notify{
		Email: Email{
			Enable:         false,
			SMTPHost:       "smtp.qq.com",
			SMTPPort:       465,
			SenderEmail:    "",
			SenderPassword: "",
			RecipientEmail: "",
		},
	},
	PlatformConfigs: map[string]PlatformConfig{},
}

func NewConfig() *Config {
	config := defaultConfig
	config.liveRoomIndexCache = map[string]int{}
	config.PlatformConfigs = map[string]PlatformConfig{}
	return &config
}

// Verify will return an error when this config has problem.
func (c *Config) Verify() error {
	if c == nil {
		return fmt.Errorf("配置不存在")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("未开播轮询间隔必须大于 0")
	}
	if c.LiveInterval <= 0 {
		return fmt.Errorf("直播中轮询间隔必须大于 0")
	}
	if err := utils.MkdirAll(c.OutPutPath); err != nil {
		return fmt.Errorf(`输出路径 "%s" 不可用: %w`, c.OutPutPath, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf(`无效的时区 "%s": %w`, c.Timezone, err)
	}
	if len(c.LiveRooms) == 0 {
		return fmt.Errorf("未配置直播间，程序无任务可执行")
	}

	return c.ValidatePlatformConfigs()
}

// todo remove this function
func (c *Config) RefreshLiveRoomIndexCache() {
	for index, room := range c.LiveRooms {
		c.liveRoomIndexCache[room.Url] = index
	}
}

func (c *Config) RemoveLiveRoomByUrl(url string) error {
	c.RefreshLiveRoomIndexCache()
	if index, ok := c.liveRoomIndexCache[url]; ok {
		if index >= 0 && index < len(c.LiveRooms) && c.LiveRooms[index].Url == url {
			c.LiveRooms = append(c.LiveRooms[:index], c.LiveRooms[index+1:]...)
			delete(c.liveRoomIndexCache, url)
			return nil
		}
	}
	return errors.New("failed removing room: " + url)
}

func (c *Config) GetLiveRoomByUrl(url string) (*LiveRoom, error) {
	room, err := c.getLiveRoomByUrlImpl(url)
	if err != nil {
		c.RefreshLiveRoomIndexCache()
		if room, err = c.getLiveRoomByUrlImpl(url); err != nil {
			return nil, err
		}
	}
	return room, nil
}

func (c Config) getLiveRoomByUrlImpl(url string) (*LiveRoom, error) {
	if index, ok := c.liveRoomIndexCache[url]; ok {
		if index >= 0 && index < len(c.LiveRooms) && c.LiveRooms[index].Url == url {
			return &c.LiveRooms[index], nil
		}
	}
	return nil, errors.New("room " + url + " doesn't exist.")
}

func NewConfigWithBytes(b []byte) (*Config, error) {
	config := defaultConfig
	if err := yaml.Unmarshal(b, &config); err != nil {
		return nil, err
	}

	if config.PlatformConfigs == nil {
		config.PlatformConfigs = map[string]PlatformConfig{}
	}

	config.RefreshLiveRoomIndexCache()
	// 在配置加载时同步平台访问频率限制器
	config.syncPlatformRateLimits()
	return &config, nil
}

// NewConfigWithFile 从文件加载配置
// 文件不存在时生成一份默认配置文件再返回，便于首次运行
func NewConfigWithFile(file string) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("can`t open file: %s", file)
		}
		config := NewConfig()
		config.File = file
		if err := config.Marshal(); err != nil {
			return nil, fmt.Errorf("failed to generate default config %s: %w", file, err)
		}
		return config, nil
	}
	config, err := NewConfigWithBytes(b)
	if err != nil {
		return nil, err
	}
	config.File = file
	// 可能会修改配置文件（添加缺失字段等），保存回去
	if err := config.Marshal(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Marshal() error {
	if c.File == "" {
		return errors.New("config path not set")
	}

	var buf bytes.Buffer
	buf.WriteString("# danmu-go 配置文件\n")
	buf.WriteString("# live_rooms 支持纯 URL 字符串或带覆盖项的对象两种写法\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return err
	}

	return os.WriteFile(c.File, buf.Bytes(), 0644)
}

func (c Config) GetFilePath() (string, error) {
	if c.File == "" {
		return "", errors.New("config path not set")
	}
	return c.File, nil
}

// CloneConfigShallow 返回 Config 的浅克隆，并对常见可变字段做拷贝，便于进行“复制-更新-原子替换”以避免并发数据竞争。
// 注意：该函数不会深拷贝嵌套指针字段，嵌套结构目前仅包含基本类型，浅拷贝足够。
func CloneConfigShallow(src *Config) *Config {
	if src == nil {
		return nil
	}
	cp := *src
	if src.LiveRooms != nil {
		cp.LiveRooms = make([]LiveRoom, len(src.LiveRooms))
		copy(cp.LiveRooms, src.LiveRooms)
	}
	if src.Cookies != nil {
		cp.Cookies = make(map[string]string, len(src.Cookies))
		for k, v := range src.Cookies {
			cp.Cookies[k] = v
		}
	}
	if src.PlatformConfigs != nil {
		cp.PlatformConfigs = make(map[string]PlatformConfig, len(src.PlatformConfigs))
		for k, v := range src.PlatformConfigs {
			cp.PlatformConfigs[k] = v
		}
	}
	// liveRoomIndexCache 拷贝，避免刷新索引时影响旧快照
	if src.liveRoomIndexCache != nil {
		cp.liveRoomIndexCache = make(map[string]int, len(src.liveRoomIndexCache))
		for k, v := range src.liveRoomIndexCache {
			cp.liveRoomIndexCache[k] = v
		}
	} else {
		cp.liveRoomIndexCache = map[string]int{}
	}
	return &cp
}

// ResolveConfigForRoom 为指定房间解析最终的配置值
// 通过合并 全局 -> 平台 -> 房间 级别的配置
func (c *Config) ResolveConfigForRoom(room *LiveRoom, platformName string) ResolvedConfig {
	resolved := ResolvedConfig{
		Interval:           c.Interval,
		LiveInterval:       c.LiveInterval,
		OutPutPath:         c.OutPutPath,
		OutputTmpl:         c.OutputTmpl,
		Timezone:           c.Timezone,
		GiftValueThreshold: c.GiftValueThreshold,
		IdleGraceInSec:     c.IdleGraceInSec,
		MaxConnectRetries:  c.MaxConnectRetries,
	}

	// 应用平台级覆盖
	if platformConfig, exists := c.PlatformConfigs[platformName]; exists {
		resolved.applyOverrides(&platformConfig.OverridableConfig)
	}

	// 应用房间级覆盖
	resolved.applyOverrides(&room.OverridableConfig)

	return resolved
}

// GetPlatformMinAccessInterval 返回指定平台的最小访问间隔
// 强制最小值为 1 秒，不允许无限制高频访问
func (c *Config) GetPlatformMinAccessInterval(platformName string) int {
	if platformConfig, exists := c.PlatformConfigs[platformName]; exists {
		if platformConfig.MinAccessIntervalSec >= 1 {
			return platformConfig.MinAccessIntervalSec
		}
	}
	return 1
}

// syncPlatformRateLimits 同步平台访问频率限制到全局限制器
func (c *Config) syncPlatformRateLimits() {
	rateLimiter := ratelimit.GetGlobalRateLimiter()

	currentLimits := rateLimiter.GetAllPlatformLimits()

	for platformKey, platformConfig := range c.PlatformConfigs {
		if platformConfig.MinAccessIntervalSec > 0 {
			rateLimiter.SetPlatformLimit(platformKey, platformConfig.MinAccessIntervalSec)
		}
		delete(currentLimits, platformKey)
	}

	// 清除配置中不再存在的平台限制
	for platformKey := range currentLimits {
		rateLimiter.SetPlatformLimit(platformKey, 0)
	}
}

// ResolvedConfig 包含房间的最终解析配置值
type ResolvedConfig struct {
	Interval           int    `json:"interval"`
	LiveInterval       int    `json:"live_interval"`
	OutPutPath         string `json:"out_put_path"`
	OutputTmpl         string `json:"out_put_tmpl"`
	Timezone           string `json:"timezone"`
	GiftValueThreshold int    `json:"gift_value_threshold"`
	IdleGraceInSec     int    `json:"idle_grace_in_sec"`
	MaxConnectRetries  int    `json:"max_connect_retries"`
}

// IdleGrace 宽限期时长
func (r ResolvedConfig) IdleGrace() time.Duration {
	return time.Duration(r.IdleGraceInSec) * time.Second
}

// Location 解析时区，失败时退回本地时区
func (r ResolvedConfig) Location() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// applyOverrides 将可覆盖配置中的非空值应用到解析配置中
func (r *ResolvedConfig) applyOverrides(override *OverridableConfig) {
	if override.Interval != nil {
		r.Interval = *override.Interval
	}
	if override.LiveInterval != nil {
		r.LiveInterval = *override.LiveInterval
	}
	if override.OutPutPath != nil {
		r.OutPutPath = *override.OutPutPath
	}
	if override.OutputTmpl != nil {
		r.OutputTmpl = *override.OutputTmpl
	}
	if override.Timezone != nil {
		r.Timezone = *override.Timezone
	}
	if override.GiftValueThreshold != nil {
		r.GiftValueThreshold = *override.GiftValueThreshold
	}
	if override.IdleGraceInSec != nil {
		r.IdleGraceInSec = *override.IdleGraceInSec
	}
	if override.MaxConnectRetries != nil {
		r.MaxConnectRetries = *override.MaxConnectRetries
	}
}

// GetPlatformKeyFromUrl 从URL中提取平台键，用于配置查找
func GetPlatformKeyFromUrl(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}

	// 将域名映射到一致的平台键
	domainToPlatformMap := map[string]string{
		"live.douyin.com": "douyin",
		"v.douyin.com":    "douyin",
	}

	if platform, exists := domainToPlatformMap[u.Host]; exists {
		return platform
	}

	// 备用方案：使用主机名
	return u.Host
}

// GetEffectiveConfigForRoom 返回房间的有效配置
func (c *Config) GetEffectiveConfigForRoom(roomUrl string) ResolvedConfig {
	platformKey := GetPlatformKeyFromUrl(roomUrl)
	room, err := c.GetLiveRoomByUrl(roomUrl)
	if err != nil {
		// 如果未找到房间，创建最小房间用于解析
		room = &LiveRoom{Url: roomUrl}
	}
	return c.ResolveConfigForRoom(room, platformKey)
}

// ValidatePlatformConfigs 验证平台配置的一致性
func (c *Config) ValidatePlatformConfigs() error {
	for platformKey, platformConfig := range c.PlatformConfigs {
		if platformConfig.Interval != nil && *platformConfig.Interval <= 0 {
			return fmt.Errorf("平台 '%s': 轮询间隔必须大于 0", platformKey)
		}
		if platformConfig.MinAccessIntervalSec < 0 {
			return fmt.Errorf("平台 '%s': 最小访问间隔不能为负数", platformKey)
		}
	}
	return nil
}
