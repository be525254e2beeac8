package flag

import (
	"os"

	"github.com/alecthomas/kingpin"

	"github.com/danmu-go/danmu-go/src/configs"
	"github.com/danmu-go/danmu-go/src/consts"
)

var (
	app = kingpin.New(consts.AppName, "Douyin 直播间弹幕采集工具。").Version(consts.AppVersion)

	Debug        = app.Flag("debug", "Enable debug mode.").Default("false").Bool()
	Interval     = app.Flag("interval", "Polling interval in seconds while the room is offline.").Short('t').Default("45").Int()
	LiveInterval = app.Flag("live-interval", "Polling interval in seconds while the room is on air.").Default("15").Int()
	Output       = app.Flag("output", "Output file path.").Short('o').Default("./").String()
	Timezone     = app.Flag("timezone", "Timezone used when rendering record timestamps.").Default("Asia/Shanghai").String()
	Conf         = app.Flag("config", "Config file.").Short('c').String()
	Input        = app.Flag("input", "Live room urls.").Short('i').Strings()

	// 签名脚本不随二进制分发，路径单独指定
	SignScript   = app.Flag("sign-script", "Path of the webcast signature script.").Default("sign.js").String()
	ABogusScript = app.Flag("abogus-script", "Path of the a_bogus signature script.").Default("a_bogus.js").String()
)

func init() {
	app.HelpFlag.Short('h')
	kingpin.MustParse(app.Parse(os.Args[1:]))
}

// GenConfigFromFlags 未提供配置文件时用命令行参数拼一份配置
func GenConfigFromFlags() *configs.Config {
	cfg := configs.NewConfig()
	cfg.Debug = *Debug
	cfg.Interval = *Interval
	cfg.LiveInterval = *LiveInterval
	cfg.OutPutPath = *Output
	cfg.Timezone = *Timezone
	cfg.LiveRooms = configs.NewLiveRoomsWithStrings(*Input)
	return cfg
}
