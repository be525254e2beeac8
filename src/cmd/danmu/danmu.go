package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bluele/gcache"

	"github.com/danmu-go/danmu-go/src/cmd/danmu/internal/flag"
	"github.com/danmu-go/danmu-go/src/configs"
	"github.com/danmu-go/danmu-go/src/consts"
	"github.com/danmu-go/danmu-go/src/danmaku"
	"github.com/danmu-go/danmu-go/src/instance"
	"github.com/danmu-go/danmu-go/src/listeners"
	"github.com/danmu-go/danmu-go/src/live"
	"github.com/danmu-go/danmu-go/src/live/douyin"
	"github.com/danmu-go/danmu-go/src/log"
	"github.com/danmu-go/danmu-go/src/pkg/events"
	"github.com/danmu-go/danmu-go/src/pkg/ratelimit"
	dgsentry "github.com/danmu-go/danmu-go/src/pkg/sentry"
	"github.com/danmu-go/danmu-go/src/pkg/signer"
	"github.com/danmu-go/danmu-go/src/types"
)

var (
	// SentryDSN 编译时通过 -ldflags="-X main.SentryDSN=..." 注入
	// 或设置环境变量 SENTRY_DSN
	SentryDSN = ""
	// SentryEnv Sentry Environment (编译时注入)
	SentryEnv = "production"
)

func getConfig() (*configs.Config, error) {
	var config *configs.Config
	if *flag.Conf != "" {
		c, err := configs.NewConfigWithFile(*flag.Conf)
		if err != nil {
			return nil, err
		}
		config = c
	} else {
		config = flag.GenConfigFromFlags()
	}
	if len(config.LiveRooms) == 0 {
		// 兜底：找可执行文件旁边的 config.yml
		if c, err := getConfigBesidesExecutable(); err == nil {
			return c, c.Verify()
		}
	}
	return config, config.Verify()
}

func getConfigBesidesExecutable() (*configs.Config, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(filepath.Dir(exePath), "config.yml")
	return configs.NewConfigWithFile(configPath)
}

func main() {
	// 程序退出时刷新 Sentry 事件队列
	defer dgsentry.Flush(2 * time.Second)
	defer dgsentry.Recover()

	config, err := getConfig()
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		os.Exit(1)
	}
	configs.SetCurrentConfig(config)

	// DSN 来源优先级：编译时注入 > 环境变量 SENTRY_DSN
	sentryDSN := SentryDSN
	if sentryDSN == "" {
		sentryDSN = os.Getenv("SENTRY_DSN")
	}
	if sentryDSN != "" {
		environment := SentryEnv
		if config.Debug {
			environment = "development"
		}
		if err := dgsentry.Init(sentryDSN, environment, consts.AppVersion); err != nil {
			// Sentry 初始化失败不影响程序运行
			fmt.Fprintf(os.Stderr, "警告: Sentry 初始化失败: %v\n", err)
		}
	}

	inst := new(instance.Instance)
	inst.Cache = gcache.New(4096).LRU().Build()

	// 可取消的根 context，所有 goroutine 使用派生自它的子 context
	rootCtx, rootCancel := context.WithCancel(context.Background())
	ctx := context.WithValue(rootCtx, instance.Key, inst)

	logger := log.New(ctx)
	logger.Infof("%s Version: %s Link Start", consts.AppName, consts.AppVersion)
	if config.File != "" {
		logger.Debugf("config path: %s.", config.File)
		logger.Debugf("other flags have been ignored.")
	} else {
		logger.Debugf("config file is not used.")
		logger.Debugf("flag: %s used.", os.Args)
	}
	logger.Debugf("%+v", consts.GetAppInfo())
	logger.Debugf("%+v", configs.GetCurrentConfig())

	// 弹幕连接串要 JS 签名脚本，缺了只能退出
	jsSigner, err := signer.NewJSSigner(*flag.SignScript, *flag.ABogusScript, live.CommonUserAgentStr)
	if err != nil {
		logger.Fatalf("failed to load signature scripts, error: %s", err)
	}
	douyin.SetSigner(jsSigner)

	events.NewDispatcher(ctx)

	lm := listeners.NewManager(ctx)
	dm := danmaku.NewManager(ctx)

	inst.Lives = make(map[types.LiveID]live.Live)
	for _, room := range config.LiveRooms {
		platformKey := configs.GetPlatformKeyFromUrl(room.Url)
		if platformKey != "" {
			minInterval := config.GetPlatformMinAccessInterval(platformKey)
			ratelimit.GetGlobalRateLimiter().SetPlatformLimit(platformKey, minInterval)
		}
	}

	var listeningRooms []live.Live
	for index := range config.LiveRooms {
		room := config.LiveRooms[index]
		l, liveErr := live.New(ctx, &room, inst.Cache)
		if liveErr != nil {
			logger.WithField("url", room.Url).Error(liveErr.Error())
			continue
		}
		if _, ok := inst.Lives[l.GetLiveId()]; ok {
			logger.Errorf("%v is exist!", room.Url)
			continue
		}
		inst.Lives[l.GetLiveId()] = l
		configs.SetLiveRoomId(room.Url, l.GetLiveId())
		if room.IsListening {
			listeningRooms = append(listeningRooms, l)
		}
	}

	if err = lm.Start(ctx); err != nil {
		logger.Fatalf("failed to init listener manager, error: %s", err)
	}
	if err = dm.Start(ctx); err != nil {
		logger.Fatalf("failed to init danmaku manager, error: %s", err)
	}

	for _, l := range listeningRooms {
		if err := lm.AddListener(ctx, l); err != nil {
			logger.WithFields(map[string]any{"url": l.GetRawUrl()}).Error(err)
		}
	}
	logger.Infof("Created %d live rooms (%d listening)", len(inst.Lives), len(listeningRooms))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	dgsentry.Go(func() {
		<-c
		logger.Info("Received shutdown signal, closing...")
		rootCancel()
		inst.ListenerManager.Close(ctx)
		inst.DanmakuManager.Close(ctx)
	})

	inst.WaitGroup.Wait()
	logger.Info("Bye~")
}
