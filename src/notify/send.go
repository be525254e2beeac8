package notify

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/danmu-go/danmu-go/src/configs"
	"github.com/danmu-go/danmu-go/src/consts"
	"github.com/danmu-go/danmu-go/src/notify/email"
)

// SendNotification 发送统一通知函数
// 目前只支持邮件；未开启任何通知渠道时为 no-op
// 参数: logger(直播间日志), hostName(主播姓名), platform(直播平台), liveURL(直播地址), status(consts.LiveStatusStart/Stop)
func SendNotification(logger logrus.FieldLogger, hostName, platform, liveURL, status string) error {
	cfg := configs.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var messageStatus string
	switch status {
	case consts.LiveStatusStart:
		messageStatus = "已开始直播,弹幕采集中"
	case consts.LiveStatusStop:
		messageStatus = "已结束直播,弹幕采集已停止"
	default:
		messageStatus = "直播状态未知"
	}

	hostInfo := fmt.Sprintf("%s,%s", hostName, messageStatus)

	if cfg.Notify.Email.Enable {
		subject := fmt.Sprintf("%s - %s", hostInfo, platform)
		body := fmt.Sprintf("主播：%s\n平台：%s\n直播地址：%s", hostInfo, platform, liveURL)
		if err := email.SendEmail(subject, body); err != nil {
			logger.WithError(err).Error("Failed to send email")
		}
	}

	return nil
}
