package datapush

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"CustomerAnalytics/src/processor"
	"CustomerAnalytics/src/utils"

	"github.com/jordan-wright/email"
)

const (
	RETRY_TIMES    = 3
	RETRY_INTERVAL = 2 * time.Second
)

// Mailer 通过SMTP把目标客户名单发给运营
type Mailer struct {
	Server     string // host:port, 465端口走TLS
	Username   string
	Password   string
	Subject    string
	Recipients []string

	send          func(e *email.Email) error
	retryInterval time.Duration
}

func NewMailer(server, username, password, subject string, recipients []string) *Mailer {
	m := &Mailer{
		Server:        server,
		Username:      username,
		Password:      password,
		Subject:       subject,
		Recipients:    recipients,
		retryInterval: RETRY_INTERVAL,
	}
	m.send = m.smtpSend
	return m
}

func (m *Mailer) smtpSend(e *email.Email) error {
	host, port, err := net.SplitHostPort(m.Server)
	if err != nil {
		return fmt.Errorf("SMTP服务器地址格式错误: %v", err)
	}
	auth := smtp.PlainAuth("", m.Username, m.Password, host)
	if port == "465" {
		return e.SendWithTLS(m.Server, auth, &tls.Config{ServerName: host})
	}
	return e.Send(m.Server, auth)
}

// Compose 邮件正文为汇总表, 附件为名单文件
func (m *Mailer) Compose(res *processor.Result, attachments []string) (*email.Email, error) {
	e := email.NewEmail()
	e.From = m.Username
	e.To = m.Recipients
	subject := m.Subject
	if subject == "" {
		subject = "客户价值分析"
	}
	e.Subject = fmt.Sprintf("%s %s", subject, res.AnalysisDate.Format(utils.DateLayout))

	var body bytes.Buffer
	PrintSummary(&body, res)
	e.Text = body.Bytes()

	for _, path := range attachments {
		if _, err := e.AttachFile(path); err != nil {
			return nil, fmt.Errorf("添加附件 %s 失败: %v", path, err)
		}
	}
	return e, nil
}

// Send 发送结果邮件, 失败时重试
func (m *Mailer) Send(res *processor.Result, attachments []string) error {
	if len(m.Recipients) == 0 {
		return fmt.Errorf("没有收件人")
	}
	e, err := m.Compose(res, attachments)
	if err != nil {
		return err
	}
	return retry(func() error { return m.send(e) }, RETRY_TIMES, m.retryInterval)
}

// 重试函数
func retry(fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %v", times, err)
}
