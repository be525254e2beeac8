package email

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/danmu-go/danmu-go/src/configs"
)

// for test
var dialAndSend = func(d *gomail.Dialer, m *gomail.Message) error {
	return d.DialAndSend(m)
}

// SendEmail 按配置发送邮件通知
func SendEmail(subject, body string) error {
	cfg := configs.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}
	emailCfg := cfg.Notify.Email
	if emailCfg.SMTPHost == "" || emailCfg.SenderEmail == "" || emailCfg.RecipientEmail == "" {
		return fmt.Errorf("email notify config incomplete")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", emailCfg.SenderEmail)
	m.SetHeader("To", emailCfg.RecipientEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(emailCfg.SMTPHost, emailCfg.SMTPPort, emailCfg.SenderEmail, emailCfg.SenderPassword)
	return dialAndSend(d, m)
}
